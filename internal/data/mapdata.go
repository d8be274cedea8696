package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tileBlocked marks an impassable tile in a map file; any other glyph is walkable.
const tileBlocked = '#'

// Point is a tile coordinate in a map file.
type Point struct {
	X int32 `yaml:"x"`
	Y int32 `yaml:"y"`
}

type mapFile struct {
	Name     string   `yaml:"name"`
	TileSize int      `yaml:"tile_size"`
	Spawn    Point    `yaml:"spawn"`
	Rows     []string `yaml:"rows"`
}

// MapData is a static walkability grid. Row i of the file is y == i, column j
// is x == j. Read-only after load, so any goroutine may query it.
type MapData struct {
	name     string
	tileSize int
	spawn    Point
	width    int32
	height   int32
	blocked  []bool // flat [y*width + x]
}

// LoadMapData reads a YAML map file.
func LoadMapData(path string) (*MapData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map %s: %w", path, err)
	}
	m, err := ParseMapData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	return m, nil
}

// ParseMapData decodes a map from YAML bytes.
func ParseMapData(raw []byte) (*MapData, error) {
	var file mapFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Rows) == 0 {
		return nil, fmt.Errorf("map %q has no rows", file.Name)
	}
	width := len(file.Rows[0])
	for i, row := range file.Rows {
		if len(row) != width {
			return nil, fmt.Errorf("map %q row %d has width %d, want %d", file.Name, i, len(row), width)
		}
	}
	if file.TileSize <= 0 {
		file.TileSize = 32
	}

	m := &MapData{
		name:     file.Name,
		tileSize: file.TileSize,
		spawn:    file.Spawn,
		width:    int32(width),
		height:   int32(len(file.Rows)),
		blocked:  make([]bool, width*len(file.Rows)),
	}
	for y, row := range file.Rows {
		for x := 0; x < len(row); x++ {
			m.blocked[y*width+x] = row[x] == tileBlocked
		}
	}
	if !m.IsWalkable(m.spawn.X, m.spawn.Y) {
		return nil, fmt.Errorf("map %q spawn (%d,%d) is not walkable", file.Name, m.spawn.X, m.spawn.Y)
	}
	return m, nil
}

// NewOpenMap builds a width x height map with every tile walkable.
func NewOpenMap(width, height int32, tileSize int) *MapData {
	return &MapData{
		name:     "open",
		tileSize: tileSize,
		width:    width,
		height:   height,
		blocked:  make([]bool, int(width)*int(height)),
	}
}

func (m *MapData) Name() string  { return m.name }
func (m *MapData) TileSize() int { return m.tileSize }
func (m *MapData) Width() int32  { return m.width }
func (m *MapData) Height() int32 { return m.height }
func (m *MapData) Spawn() Point  { return m.spawn }

// InBounds reports whether (x,y) lies inside the grid.
func (m *MapData) InBounds(x, y int32) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// IsWalkable reports whether an entity may stand on (x,y). Tiles outside the
// grid are never walkable.
func (m *MapData) IsWalkable(x, y int32) bool {
	if !m.InBounds(x, y) {
		return false
	}
	return !m.blocked[y*m.width+x]
}

// SetBlocked toggles a tile; used by tests and map editing tools.
func (m *MapData) SetBlocked(x, y int32, blocked bool) {
	if m.InBounds(x, y) {
		m.blocked[y*m.width+x] = blocked
	}
}
