package score

// Suspicious-beatmap-gate thresholds, applied before a score is allowed
// to earn pp.
const (
	notesThreshold       = 500_000
	taikoNotesThreshold  = 30_000
	notesPer1sThreshold  = 200
	notesPer10sThreshold = 500
	notePosXThreshold    = 512.0
	notePosYThreshold    = 384.0
	sliderRepeatThreshold = 5000

	maxMapDurationMS = 24 * 60 * 60 * 1000
)

// IsSuspiciousBeatmap reports whether raw .osu content should be treated as
// abusive and have any computed pp forced to zero.
func IsSuspiciousBeatmap(rawContent []byte) bool {
	file := parseOsuFile(rawContent)
	if len(file.HitObjects) == 0 {
		return false
	}

	objects := file.HitObjects
	if objects[len(objects)-1].StartTime-objects[0].StartTime > maxMapDurationMS {
		return true
	}

	switch file.Mode {
	case RulesetTaiko:
		if len(objects) > taikoNotesThreshold {
			return true
		}
	default:
		if len(objects) > notesThreshold {
			return true
		}
	}

	switch file.Mode {
	case RulesetOsu:
		return tooDense(objects, notesPer1sThreshold, notesPer10sThreshold) ||
			sliderIsSus(objects) || is2B(objects)
	case RulesetTaiko:
		return tooDense(objects, notesPer1sThreshold*2, notesPer10sThreshold*2) || is2B(objects)
	case RulesetCatch:
		return sliderIsSus(objects) || is2B(objects)
	case RulesetMania:
		keysPerHand := int(file.CS / 2)
		if keysPerHand < 1 {
			keysPerHand = 1
		}
		return tooDense(objects, notesPer1sThreshold*keysPerHand, notesPer10sThreshold*keysPerHand)
	default:
		return false
	}
}

// tooDense reports whether any window of per1s consecutive objects spans
// less than 1000ms, or per10s spans less than 10000ms.
func tooDense(objects []hitObject, per1s, per10s int) bool {
	if per1s < 1 {
		per1s = 1
	}
	if per10s < 1 {
		per10s = 1
	}
	for i := range objects {
		if i+per1s < len(objects) {
			if objects[i+per1s].StartTime-objects[i].StartTime < 1000 {
				return true
			}
		} else if i+per10s < len(objects) && objects[i+per10s].StartTime-objects[i].StartTime < 10000 {
			return true
		}
	}
	return false
}

// sliderIsSus flags a slider with an excessive repeat count or any control
// point (including its head) outside the playfield.
func sliderIsSus(objects []hitObject) bool {
	for _, obj := range objects {
		if !obj.IsSlider {
			continue
		}
		if obj.RepeatCount > sliderRepeatThreshold {
			return true
		}
		if outOfBounds(obj.Pos) {
			return true
		}
		for _, p := range obj.ControlPoints {
			if outOfBounds(p) {
				return true
			}
		}
	}
	return false
}

func outOfBounds(p point) bool {
	return p.X > notePosXThreshold || p.X < 0 || p.Y > notePosYThreshold || p.Y < 0
}

// is2B reports whether two consecutive objects share an identical start
// time, the simplest overlap ("2B") pattern.
func is2B(objects []hitObject) bool {
	for i := 0; i+1 < len(objects); i++ {
		if objects[i].StartTime == objects[i+1].StartTime {
			return true
		}
	}
	return false
}
