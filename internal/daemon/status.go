package daemon

import (
	"fmt"
	"strings"
)

// formatStatus renders the daemon status for the tray
func formatStatus(d *Daemon) string {
	status, err := d.GetStatus()
	if err != nil {
		return fmt.Sprintf("Status unavailable: %v", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\n", status.Date)
	fmt.Fprintf(&sb, "State: %s\n", status.State)
	fmt.Fprintf(&sb, "Window start: %s\n", status.WindowStart)
	fmt.Fprintf(&sb, "Month: %d/%d h\n", status.TotalHours, status.RequiredHours)
	fmt.Fprintf(&sb, "Today: %d/%d h\n", status.TodayHours, status.DailyHours)

	if _, checkInAt := d.State(); !checkInAt.IsZero() {
		fmt.Fprintf(&sb, "Last check-in: %s", checkInAt.Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintf(&sb, "Check-in at: %s", status.CheckInAt)
	}
	return sb.String()
}
