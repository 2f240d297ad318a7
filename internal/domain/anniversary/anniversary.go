package anniversary

// Anniversary is a recurring yearly event belonging to a group.
// Date carries only day and month ("D/M", no year); the event repeats
// every year on that day.
type Anniversary struct {
	ID      string
	GroupID string
	Name    string
	Date    string
}
