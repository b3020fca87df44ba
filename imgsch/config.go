package imgsch

import (
	"encoding"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime/debug"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/edtenz/imgsch/pkg/rlog"
)

// ErrPrintVersion is returned by [ParseConfig] when only the version was requested.
var ErrPrintVersion = errors.New("version requested")

type Config struct {
	BuildInfo BuildInfo

	// Input is a path to an image, "-" for stdin or a data URL.
	Input string
	// Output is a path for the thumbnail, "-" for stdout. If it is empty,
	// the path is derived from Input.
	Output  string
	DataURL bool

	MaxDimension     MaxDimension
	ThumbnailsFormat ThumbnailFormat
	JPEGQuality      int
	Interpolator     Interpolator

	MetricsFile string

	LogLevel rlog.Level
}

type BuildInfo struct {
	ShortGitHash string
	CommitTime   string
}

type flagParams struct {
	// p is a pointer to a value.
	p            any
	defaultValue any
	desc         string
}

func (cfg *Config) getFlagParams() map[string]flagParams {
	return map[string]flagParams{
		"input": {
			p: &cfg.Input, defaultValue: "", desc: "" +
				"Image to generate a thumbnail for, required. One of:\n" +
				"  - path to a file\n" +
				"  - '-' to read from stdin\n" +
				"  - data URL, e.g. data:image/png;base64,...\n",
		},
		"output": {
			p: &cfg.Output, defaultValue: "", desc: "" +
				"Where to write the thumbnail, '-' for stdout. By default, the thumbnail\n" +
				"is saved next to the input file as <name>.thumbnail.<ext>",
		},
		"data-url": {
			p: &cfg.DataURL, defaultValue: false, desc: "Write the thumbnail as a data URL instead of raw bytes",
		},
		//
		"max-dimension": {
			p: &cfg.MaxDimension, defaultValue: 256, desc: "Size of the longer side of the thumbnail in pixels",
		},
		"thumbnails-format": {
			p: &cfg.ThumbnailsFormat, defaultValue: PngThumbnails, desc: "" +
				"Available thumbnail formats:\n" +
				"  - png: lossless, keeps transparency\n" +
				"  - jpeg: small files, see --jpeg-quality\n",
		},
		"jpeg-quality": {
			p: &cfg.JPEGQuality, defaultValue: 70, desc: "Quality of jpeg thumbnails, 1-100",
		},
		"interpolator": {
			p: &cfg.Interpolator, defaultValue: BiLinear, desc: "" +
				"Available interpolators:\n" +
				"  - nearest: fastest, blocky results\n" +
				"  - bilinear: fast, good enough for thumbnails\n" +
				"  - catmullrom: slowest, sharpest results\n",
		},
		//
		"metrics-file": {
			p: &cfg.MetricsFile, defaultValue: "", desc: "" +
				"Write Prometheus metrics in the textfile collector format to this file on exit, optional",
		},
		"log-level": {
			p: &cfg.LogLevel, defaultValue: rlog.LevelInfo, desc: "Set the minimal log level. One of: debug, info, warn, error",
		},
	}
}

// ParseConfig parses command line arguments without the program name.
func ParseConfig(args []string) (Config, error) {
	cfg := Config{
		BuildInfo: readBuildInfo(),
	}

	fs := flag.NewFlagSet("imgsch", flag.ContinueOnError)

	var printVersion bool
	fs.BoolVar(&printVersion, "version", false, "Print version and exit")

	flags := cfg.getFlagParams()
	for name, params := range flags {
		switch p := params.p.(type) {
		case *bool:
			fs.BoolVar(p, name, params.defaultValue.(bool), params.desc)
		case *int:
			fs.IntVar(p, name, params.defaultValue.(int), params.desc)
		case *MaxDimension:
			fs.IntVar((*int)(p), name, params.defaultValue.(int), params.desc)
		case *string:
			fs.StringVar(p, name, params.defaultValue.(string), params.desc)
		case encoding.TextUnmarshaler:
			fs.TextVar(p, name, params.defaultValue.(encoding.TextMarshaler), params.desc)
		default:
			return Config{}, fmt.Errorf("flag %q has unsupported type: %T", name, p)
		}
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if printVersion {
		return cfg, ErrPrintVersion
	}

	if cfg.Input == "" {
		return cfg, errors.New("input can't be empty")
	}
	if err := cfg.MaxDimension.Validate(); err != nil {
		return cfg, err
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return cfg, fmt.Errorf("jpeg quality must be in range [1, 100], got %d", cfg.JPEGQuality)
	}

	return cfg, nil
}

func readBuildInfo() BuildInfo {
	res := BuildInfo{
		ShortGitHash: "unknown",
		CommitTime:   "unknown",
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return res
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			res.ShortGitHash = s.Value
			if len(res.ShortGitHash) > 7 {
				res.ShortGitHash = res.ShortGitHash[:7]
			}

		case "vcs.time":
			t, err := time.Parse(time.RFC3339, s.Value)
			if err == nil {
				res.CommitTime = t.UTC().Format("2006-01-02 15:04:05 UTC")
			}
		}
	}
	return res
}

func (info BuildInfo) Print() {
	fmt.Fprintf(os.Stderr, `
    imgsch thumbnail generator

    Commit Hash: %q
    Commit Time: %q

`,
		info.ShortGitHash,
		info.CommitTime,
	)
}

// Print writes the effective config to stderr.
func (cfg Config) Print() {
	cfg.print(os.Stderr)
}

const maxPrintedValueLength = 64

func (cfg Config) print(w io.Writer) {
	flags := cfg.getFlagParams()

	var (
		names         = make([]string, 0, len(flags))
		maxNameLength int
	)
	for name := range flags {
		if len(name) > maxNameLength {
			maxNameLength = len(name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Fprint(w, "    Config:\n\n")
	for _, name := range names {
		v := fmt.Sprint(reflect.ValueOf(flags[name].p).Elem())
		if utf8.RuneCountInString(v) > maxPrintedValueLength {
			// Data URLs can be huge.
			v = string([]rune(v)[:maxPrintedValueLength]) + "..."
		}
		fmt.Fprintf(w, "        --%-*s = %s\n", maxNameLength, name, v)
	}
	fmt.Fprint(w, "\n")
}
