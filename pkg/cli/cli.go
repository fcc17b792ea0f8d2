// Package cli dispatches the gateway's AT-style configuration commands:
// +SMMINT to get/set the measurement interval, +SMREAD to trigger an
// immediate cycle, +SMRESETCONFIG to restore factory settings.
package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/config"
)

// Trigger schedules an immediate read-send cycle, bypassing the wake timer.
type Trigger interface {
	TriggerCycle()
}

var (
	setInterval = regexp.MustCompile(`^AT\+SMMINT=(\d+)$`)
	getInterval = regexp.MustCompile(`^AT\+SMMINT\?$`)
	readCmd     = regexp.MustCompile(`^AT\+SMREAD$`)
	resetCmd    = regexp.MustCompile(`^AT\+SMRESETCONFIG$`)
)

// Dispatch handles one command line and returns the response line(s) to
// echo back, in the style of an AT command responder: "OK" on success,
// "ERROR" with a reason on failure.
func Dispatch(line string, trigger Trigger) string {
	line = strings.ToUpper(strings.TrimSpace(line))

	switch {
	case getInterval.MatchString(line):
		settings := config.LoadSettings()
		return fmt.Sprintf("+SMMINT: %d\nOK", settings.MeasureIntervalMS)

	case setInterval.MatchString(line):
		parts := setInterval.FindStringSubmatch(line)
		ms, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return "ERROR: invalid interval"
		}
		settings := config.LoadSettings()
		settings.MeasureIntervalMS = uint32(ms)
		if err := config.SaveSettings(settings); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return "OK"

	case readCmd.MatchString(line):
		if trigger != nil {
			trigger.TriggerCycle()
		}
		return "OK"

	case resetCmd.MatchString(line):
		if err := config.ResetSettings(); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return "OK"

	default:
		return "ERROR: unrecognized command"
	}
}
