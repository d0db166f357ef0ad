// Package catalog は選択可能な機体の静的な一覧です。
package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidShipIndex はカタログ外のインデックスを参照した場合に返されます。折り返しはしません。
	ErrInvalidShipIndex = errors.New("invalid ship index")
	// ErrUnknownShip はカタログに存在しない機体IDの場合に返されます。
	ErrUnknownShip = errors.New("unknown ship id")
	// ErrInvalidCatalog は空または重複IDを含むカタログの場合に返されます。
	ErrInvalidCatalog = errors.New("invalid ship catalog")
)

type ShipID int

// Ship は機体1つ分の定義です。Hue は表示色の色相 (度) です。
type Ship struct {
	ID   ShipID  `yaml:"id"`
	Hue  float64 `yaml:"hue"`
	Name string  `yaml:"name,omitempty"`
}

// Catalog は順序付きの機体一覧です。生成後は変更されません。
type Catalog struct {
	ships []Ship
	index map[ShipID]int
}

var defaultShips = []Ship{
	{ID: 1, Hue: 150},
	{ID: 2, Hue: 0},
	{ID: 3, Hue: 270},
	{ID: 5, Hue: 180},
	{ID: 6, Hue: 120},
	{ID: 7, Hue: 30},
	{ID: 9, Hue: 190},
	{ID: 10, Hue: 330},
	{ID: 11, Hue: 210},
	{ID: 13, Hue: 90},
	{ID: 14, Hue: 20},
	{ID: 15, Hue: 50},
}

// Default は組み込みの12機のカタログを返します。
func Default() *Catalog {
	c, err := New(defaultShips)
	if err != nil {
		panic(err)
	}
	return c
}

func DefaultShips() []Ship {
	return append([]Ship(nil), defaultShips...)
}

func New(ships []Ship) (*Catalog, error) {
	if len(ships) == 0 {
		return nil, fmt.Errorf("%w: no ships", ErrInvalidCatalog)
	}
	c := &Catalog{
		ships: make([]Ship, len(ships)),
		index: make(map[ShipID]int, len(ships)),
	}
	for i, s := range ships {
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate ship id %d", ErrInvalidCatalog, s.ID)
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("Ship %d", s.ID)
		}
		c.ships[i] = s
		c.index[s.ID] = i
	}
	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.ships)
}

func (c *Catalog) At(i int) (Ship, error) {
	if i < 0 || i >= len(c.ships) {
		return Ship{}, fmt.Errorf("%w: %d (len %d)", ErrInvalidShipIndex, i, len(c.ships))
	}
	return c.ships[i], nil
}

func (c *Catalog) IndexOf(id ShipID) (int, error) {
	i, ok := c.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: %d", ErrUnknownShip, id)
	}
	return i, nil
}

func (c *Catalog) Lookup(id ShipID) (Ship, error) {
	i, err := c.IndexOf(id)
	if err != nil {
		return Ship{}, err
	}
	return c.ships[i], nil
}

// IDs はカタログ順の機体IDを返します。
func (c *Catalog) IDs() []ShipID {
	ids := make([]ShipID, len(c.ships))
	for i, s := range c.ships {
		ids[i] = s.ID
	}
	return ids
}
