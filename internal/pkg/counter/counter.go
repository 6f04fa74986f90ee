// Package counter is the live product counter card: it follows the count the
// device pushes, warns when the limit is reached and sends reset commands
// back to the device.
package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/anicoll/counter-dashboard/internal/pkg/model"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

const (
	CountPath        = "products/count"
	ResetCommandPath = "commands/reset"
)

// Threshold is the count at which the card turns destructive.
const Threshold int64 = 100

const (
	placeholder    = "--"
	noticeDuration = 5 * time.Second
)

// View is everything the browser needs to draw the card.
type View struct {
	Loading       bool   `json:"loading"`
	Value         *int64 `json:"value"`
	Display       string `json:"display"`
	Exceeded      bool   `json:"exceeded"`
	Limit         int64  `json:"limit"`
	Resetting     bool   `json:"resetting"`
	ResetDisabled bool   `json:"reset_disabled"`
}

func newView(loading bool, value *int64, resetting bool) View {
	v := View{
		Loading:       loading,
		Value:         value,
		Display:       placeholder,
		Limit:         Threshold,
		Resetting:     resetting,
		ResetDisabled: loading || resetting,
	}
	if value != nil {
		v.Display = strconv.FormatInt(*value, 10)
		v.Exceeded = Exceeded(*value)
	}
	return v
}

// LoadingView is the card before the first value arrives.
func LoadingView() View {
	return newView(true, nil, false)
}

func Exceeded(count int64) bool {
	return count >= Threshold
}

// SendReset asks the device to reset by writing the backend's clock to the
// command path.
func SendReset(ctx context.Context, store realtime.Store) error {
	return store.Set(ctx, ResetCommandPath, realtime.ServerTimestamp)
}

// decodeCount reads a pushed value. ok is false when the payload is not an
// integer.
func decodeCount(raw json.RawMessage) (value *int64, ok bool) {
	if realtime.IsNull(raw) {
		return nil, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false
	}
	i, err := n.Int64()
	if err != nil {
		return nil, false
	}
	return &i, true
}

var (
	limitNotice = model.Notice{
		Title:       "Alert: Limit Reached",
		Description: fmt.Sprintf("The product count has reached the limit of %d.", Threshold),
		Variant:     model.VariantDestructive,
		Duration:    noticeDuration,
	}
	connectionErrorNotice = model.Notice{
		Title:       "Connection Error",
		Description: "Could not fetch data from the database.",
		Variant:     model.VariantDestructive,
	}
	resetSentNotice = model.Notice{
		Title:       "Command Sent",
		Description: "Reset signal sent to the device.",
		Variant:     model.VariantDefault,
		Duration:    noticeDuration,
	}
	resetFailedNotice = model.Notice{
		Title:       "Error",
		Description: "Failed to send reset command.",
		Variant:     model.VariantDestructive,
		Duration:    noticeDuration,
	}
)
