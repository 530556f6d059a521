package model

import (
	"fmt"
	"strings"
)

// Direction selects the input side of a swap.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	XToY
	YToX
)

func (d Direction) String() string {
	switch d {
	case XToY:
		return "x_to_y"
	case YToX:
		return "y_to_x"
	default:
		return "unknown"
	}
}

// ParseDirection accepts "x_to_y"/"y_to_x" and the short forms "x"/"y",
// naming the asset that is sold.
func ParseDirection(input string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "x_to_y", "x", "xy":
		return XToY, nil
	case "y_to_x", "y", "yx":
		return YToX, nil
	default:
		return DirectionUnknown, fmt.Errorf("invalid direction: %s", input)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if d != XToY && d != YToX {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = DirectionUnknown
		return nil
	}
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
