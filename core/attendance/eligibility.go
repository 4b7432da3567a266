package attendance

// EligibleFor returns the children of roster for whom action is a valid transition,
// in roster order.
func EligibleFor(action ScanAction, roster []ChildStatus) []ChildStatus {
	eligible := make([]ChildStatus, 0, len(roster))
	for _, child := range roster {
		if IsEligible(action, child) {
			eligible = append(eligible, child)
		}
	}
	return eligible
}

func IsEligible(action ScanAction, child ChildStatus) bool {
	switch action {
	case CheckIn:
		return !child.IsCheckedIn
	case CheckOut:
		return child.IsCheckedIn && !child.IsCheckedOut
	default:
		return false
	}
}
