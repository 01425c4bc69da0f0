package sensor

// AlertPolicy names the metric that drives alerting and its threshold.
// A value strictly above Threshold is alerting.
type AlertPolicy struct {
	Key       string
	Threshold float64
}

// Evaluate applies one reading to the alert state.
//
// Only the normal-to-alerting edge counts. The counter restarts at one on
// the first crossing of a new day; clearing an alert never touches it.
// today is the local date of the reading.
func Evaluate(prev AlertState, value, threshold float64, today string) (AlertState, Transition) {
	next := prev
	above := value > threshold

	switch {
	case above && !prev.Alerting:
		if prev.LastUpdated != today {
			next.Count = 1
			next.LastUpdated = today
		} else {
			next.Count++
		}
		next.Alerting = true
		return next, TransitionStarted
	case above:
		return next, TransitionSustained
	case prev.Alerting:
		next.Alerting = false
		return next, TransitionCleared
	default:
		return next, TransitionNone
	}
}

// CountToday is the number of alerts started on today. A counter last
// incremented on another day reads as zero.
func CountToday(state AlertState, today string) int {
	if state.LastUpdated != today {
		return 0
	}
	return state.Count
}
