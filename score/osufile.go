package score

import (
	"strconv"
	"strings"
)

// hitObjectSlider bit in the .osu HitObjects type field.
const hitObjectSliderBit = 1 << 1

// point is an (x, y) position in osu!pixel space.
type point struct {
	X float64
	Y float64
}

// hitObject is the minimal projection of a parsed .osu hit object needed by
// the suspicious-beatmap gate: its timing, slider repeat count, and every
// position (head plus slider control points) that must stay on-playfield.
type hitObject struct {
	StartTime    int64
	IsSlider     bool
	RepeatCount  int
	Pos          point
	ControlPoints []point
}

// beatmapFile is the subset of a parsed .osu file the suspicious gate and
// display-score conversion need.
type beatmapFile struct {
	Mode       int
	CS         float64
	HitObjects []hitObject
}

// parseOsuFile reads the [General]/[Difficulty] keys and [HitObjects] lines
// out of raw .osu content. It is intentionally narrow: no timing points,
// sample sets, or storyboard data, since nothing downstream needs them.
func parseOsuFile(content []byte) beatmapFile {
	var file beatmapFile
	file.CS = 5

	section := ""
	for _, rawLine := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line
			continue
		}

		switch section {
		case "[General]":
			if key, value, ok := splitColon(line); ok && key == "Mode" {
				if v, err := strconv.Atoi(value); err == nil {
					file.Mode = v
				}
			}
		case "[Difficulty]":
			if key, value, ok := splitColon(line); ok && key == "CircleSize" {
				if v, err := strconv.ParseFloat(value, 64); err == nil {
					file.CS = v
				}
			}
		case "[HitObjects]":
			if obj, ok := parseHitObjectLine(line); ok {
				file.HitObjects = append(file.HitObjects, obj)
			}
		}
	}
	return file
}

func splitColon(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// parseHitObjectLine parses one comma-separated .osu HitObjects entry:
// x,y,time,type,hitSound,objectParams...,hitSample
func parseHitObjectLine(line string) (hitObject, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return hitObject{}, false
	}

	x, errX := strconv.ParseFloat(fields[0], 64)
	y, errY := strconv.ParseFloat(fields[1], 64)
	t, errT := strconv.ParseInt(fields[2], 10, 64)
	typeBits, errType := strconv.Atoi(fields[3])
	if errX != nil || errY != nil || errT != nil || errType != nil {
		return hitObject{}, false
	}

	obj := hitObject{StartTime: t, Pos: point{X: x, Y: y}}
	if typeBits&hitObjectSliderBit == 0 {
		return obj, true
	}
	obj.IsSlider = true

	// Slider params: curveType|curvePoints,slides,length,...
	if len(fields) < 7 {
		return obj, true
	}
	curveSpec := fields[5]
	if slides, err := strconv.Atoi(fields[6]); err == nil {
		obj.RepeatCount = slides
	}

	parts := strings.SplitN(curveSpec, "|", 2)
	if len(parts) == 2 {
		for _, pair := range strings.Split(parts[1], "|") {
			coords := strings.SplitN(pair, ":", 2)
			if len(coords) != 2 {
				continue
			}
			px, errPX := strconv.ParseFloat(coords[0], 64)
			py, errPY := strconv.ParseFloat(coords[1], 64)
			if errPX == nil && errPY == nil {
				obj.ControlPoints = append(obj.ControlPoints, point{X: px, Y: py})
			}
		}
	}
	return obj, true
}
