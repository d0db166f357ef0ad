package input

// KeyCode は物理キーの識別子です。ブラウザの KeyboardEvent.code と同じ表記を使います。
type KeyCode string

const (
	KeyW      KeyCode = "KeyW"
	KeyA      KeyCode = "KeyA"
	KeyS      KeyCode = "KeyS"
	KeyD      KeyCode = "KeyD"
	KeyC      KeyCode = "KeyC"
	KeyV      KeyCode = "KeyV"
	KeyQ      KeyCode = "KeyQ"
	KeyUp     KeyCode = "ArrowUp"
	KeyDown   KeyCode = "ArrowDown"
	KeyLeft   KeyCode = "ArrowLeft"
	KeyRight  KeyCode = "ArrowRight"
	KeyComma  KeyCode = "Comma"
	KeyPeriod KeyCode = "Period"
	KeySlash  KeyCode = "Slash"
	KeyEscape KeyCode = "Escape"
)

type keyBinding struct {
	slot   int // キーボードスロットの Index
	button Buttons
}

// キーボード1台を左右2スロットで共有する
var keymap = map[KeyCode][]keyBinding{
	KeyW: {{0, ButtonUp}},
	KeyA: {{0, ButtonLeft}},
	KeyS: {{0, ButtonDown}},
	KeyD: {{0, ButtonRight}},
	KeyC: {{0, ButtonPrimary}},
	KeyV: {{0, ButtonSecondary}},
	KeyQ: {{0, ButtonMenu}},

	KeyUp:     {{1, ButtonUp}},
	KeyLeft:   {{1, ButtonLeft}},
	KeyDown:   {{1, ButtonDown}},
	KeyRight:  {{1, ButtonRight}},
	KeyComma:  {{1, ButtonPrimary}},
	KeyPeriod: {{1, ButtonSecondary}},
	KeySlash:  {{1, ButtonMenu}},

	KeyEscape: {{0, ButtonMenu}, {1, ButtonMenu}},
}

// KnownKeyCodes は割り当て済みのキーをすべて返します。フロントエンドのポーリング対象です。
func KnownKeyCodes() []KeyCode {
	codes := make([]KeyCode, 0, len(keymap))
	for code := range keymap {
		codes = append(codes, code)
	}
	return codes
}

func IsKnownKey(code KeyCode) bool {
	_, ok := keymap[code]
	return ok
}

// keyboardHeld はキーの集合からキーボードスロットごとの押下ボタンを求めます。
func keyboardHeld(keys map[KeyCode]struct{}) [MaxKeyboards]Buttons {
	var held [MaxKeyboards]Buttons
	for code := range keys {
		for _, b := range keymap[code] {
			held[b.slot] |= b.button
		}
	}
	return held
}
