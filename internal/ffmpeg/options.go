package ffmpeg

import (
	"fmt"
	"slices"
	"strings"
)

// OptionType names an input tuning flag that can be enabled per deployment.
type OptionType string

// Input option keys.
const (
	OptionLowLatency         OptionType = "low_latency"
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreDTS          OptionType = "igndts"
	OptionDiscardCorrupt     OptionType = "discardcorrupt"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
)

// ExclusiveGroup groups options of which at most one may be selected.
type ExclusiveGroup string

const GroupThreadQueue ExclusiveGroup = "thread_queue"

// Option describes an input option and the arguments it expands to.
type Option struct {
	Key            OptionType
	Description    string
	Args           []string
	Fflags         string // merged into a single -fflags argument
	ExclusiveGroup ExclusiveGroup
	ConflictsWith  []OptionType
}

// AllOptions lists the supported input options.
var AllOptions = []Option{
	{
		Key:         OptionLowLatency,
		Description: "Disable input buffering and decode with low delay",
		Args:        []string{"-flags", "low_delay"},
		Fflags:      "nobuffer",
	},
	{
		Key:           OptionGeneratePTS,
		Description:   "Generate missing presentation timestamps",
		Fflags:        "genpts",
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:         OptionIgnoreDTS,
		Description: "Ignore decode timestamps from broken cameras",
		Fflags:      "igndts",
	},
	{
		Key:         OptionDiscardCorrupt,
		Description: "Drop corrupted packets instead of decoding them",
		Fflags:      "discardcorrupt",
	},
	{
		Key:         OptionIgnoreErrors,
		Description: "Keep decoding across bitstream errors",
		Args:        []string{"-err_detect", "ignore_err"},
	},
	{
		Key:           OptionWallclockTimestamp,
		Description:   "Use the wall clock as input timestamps",
		Args:          []string{"-use_wallclock_as_timestamps", "1"},
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:            OptionThreadQueue1024,
		Description:    "Input thread queue of 1024 packets",
		Args:           []string{"-thread_queue_size", "1024"},
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:            OptionThreadQueue4096,
		Description:    "Input thread queue of 4096 packets",
		Args:           []string{"-thread_queue_size", "4096"},
		ExclusiveGroup: GroupThreadQueue,
	},
}

// GetOptionByKey returns an option by its key, or nil.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// ParseOptions converts configured option names and validates them.
func ParseOptions(names []string) ([]OptionType, error) {
	opts := make([]OptionType, 0, len(names))
	for _, name := range names {
		key := OptionType(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		if !slices.Contains(opts, key) {
			opts = append(opts, key)
		}
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// ValidateOptions checks for conflicts and exclusive group violations.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]OptionType)
	for _, key := range selected {
		opt := GetOptionByKey(key)
		if opt == nil {
			return fmt.Errorf("unknown ffmpeg option %q", key)
		}
		if opt.ExclusiveGroup != "" {
			groups[opt.ExclusiveGroup] = append(groups[opt.ExclusiveGroup], key)
		}
		for _, c := range opt.ConflictsWith {
			if slices.Contains(selected, c) {
				return fmt.Errorf("ffmpeg options %s and %s conflict", key, c)
			}
		}
	}
	for group, keys := range groups {
		if len(keys) > 1 {
			return fmt.Errorf("only one %s option allowed, got %v", group, keys)
		}
	}
	return nil
}

// inputArgs expands selected options into input arguments. All fflags are
// merged into one -fflags argument since ffmpeg keeps only the last one.
func inputArgs(selected []OptionType) []string {
	var args []string
	var fflags []string
	for _, opt := range AllOptions {
		if !slices.Contains(selected, opt.Key) {
			continue
		}
		args = append(args, opt.Args...)
		if opt.Fflags != "" {
			fflags = append(fflags, "+"+opt.Fflags)
		}
	}
	if len(fflags) > 0 {
		args = append(args, "-fflags", strings.Join(fflags, ""))
	}
	return args
}
