// mapconv converts a plain text tile grid into the map YAML read by the server.
//
// Usage:
//
//	go run ./cmd/mapconv -in maps/meadow.txt -out data/map.yaml [-name meadow] [-tile 32]
//
// One line per row. '#' is blocked, 'S' marks the spawn tile, anything else is
// walkable. Blank lines and lines starting with ';' are skipped.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gridrealm/server/internal/data"
	"gopkg.in/yaml.v3"
)

const spawnGlyph = 'S'

type point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type mapOut struct {
	Name     string   `yaml:"name"`
	TileSize int      `yaml:"tile_size"`
	Spawn    point    `yaml:"spawn"`
	Rows     []string `yaml:"rows"`
}

func main() {
	in := flag.String("in", "", "text grid to convert")
	out := flag.String("out", filepath.Join("data", "map.yaml"), "YAML output file")
	name := flag.String("name", "", "map name (defaults to the input file name)")
	tile := flag.Int("tile", 32, "tile edge length in pixels")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "Usage: mapconv -in <grid.txt> [-out data/map.yaml] [-name meadow] [-tile 32]")
		os.Exit(1)
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	}

	m, err := convert(*in, *name, *tile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	raw, err := yaml.Marshal(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Same checks the server runs on load.
	if _, err := data.ParseMapData(raw); err != nil {
		fmt.Fprintf(os.Stderr, "invalid map: %v\n", err)
		os.Exit(1)
	}
	header := fmt.Sprintf("# %s, generated by mapconv from %s\n", m.Name, filepath.Base(*in))
	if err := os.WriteFile(*out, append([]byte(header), raw...), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %dx%d map %q to %s (spawn %d,%d)\n",
		len(m.Rows[0]), len(m.Rows), m.Name, *out, m.Spawn.X, m.Spawn.Y)
}

func convert(path, name string, tileSize int) (*mapOut, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &mapOut{Name: name, TileSize: tileSize}
	spawnFound := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		y := len(m.Rows)
		if x := strings.IndexRune(line, spawnGlyph); x >= 0 {
			if spawnFound {
				return nil, fmt.Errorf("%s: second spawn marker on row %d", path, y)
			}
			spawnFound = true
			m.Spawn = point{X: x, Y: y}
			line = strings.Replace(line, string(spawnGlyph), ".", 1)
		}
		m.Rows = append(m.Rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("%s: no rows", path)
	}
	if !spawnFound {
		return nil, fmt.Errorf("%s: no spawn marker %q", path, spawnGlyph)
	}
	return m, nil
}
