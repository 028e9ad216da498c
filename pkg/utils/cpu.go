package utils

import "github.com/shirou/gopsutil/cpu"

// CheckCPUUsage reports whether system CPU usage is under the limit, plus
// the measured percentage. A non-positive limit disables the gate, and a
// failed measurement counts as under the limit so workers never stall on a
// metrics error.
func CheckCPUUsage(maxCPUUsage float64) (bool, float64) {
	if maxCPUUsage <= 0 {
		return true, 0
	}
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		return true, 0
	}
	return usage[0] <= maxCPUUsage, usage[0]
}
