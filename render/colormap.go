package render

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"
)

// Colormap maps a normalized value in [0, 1] to a color.
type Colormap struct {
	name  string
	stops []color.RGBA
}

// anchor colors sampled evenly along each map
var colormaps = map[string][]color.RGBA{
	"magma": {
		{0, 0, 4, 255}, {28, 16, 68, 255}, {79, 18, 123, 255}, {129, 37, 129, 255},
		{181, 54, 122, 255}, {229, 80, 100, 255}, {251, 135, 97, 255}, {254, 194, 135, 255},
		{252, 253, 191, 255},
	},
	"viridis": {
		{68, 1, 84, 255}, {72, 40, 120, 255}, {62, 74, 137, 255}, {49, 104, 142, 255},
		{38, 130, 142, 255}, {31, 158, 137, 255}, {53, 183, 121, 255}, {109, 205, 89, 255},
		{180, 222, 44, 255}, {253, 231, 37, 255},
	},
	"inferno": {
		{0, 0, 4, 255}, {31, 12, 72, 255}, {85, 15, 109, 255}, {136, 34, 106, 255},
		{186, 54, 85, 255}, {227, 89, 51, 255}, {249, 140, 10, 255}, {249, 201, 50, 255},
		{252, 255, 164, 255},
	},
	"gray": {
		{0, 0, 0, 255}, {255, 255, 255, 255},
	},
}

// Colormaps lists the available colormap names.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupColormap returns the named colormap. Names are case-insensitive.
func LookupColormap(name string) (Colormap, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	stops, ok := colormaps[key]
	if !ok {
		return Colormap{}, fmt.Errorf("unknown colormap %q (available: %s)", name, strings.Join(Colormaps(), ", "))
	}
	return Colormap{name: key, stops: stops}, nil
}

// Name returns the colormap name.
func (c Colormap) Name() string { return c.name }

// At interpolates linearly between anchors. Values outside [0, 1] and NaN
// clamp to the ends.
func (c Colormap) At(v float64) color.RGBA {
	if math.IsNaN(v) || v <= 0 {
		return c.stops[0]
	}
	if v >= 1 {
		return c.stops[len(c.stops)-1]
	}
	pos := v * float64(len(c.stops)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := c.stops[i], c.stops[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + frac*(float64(y)-float64(x))))
	}
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}
