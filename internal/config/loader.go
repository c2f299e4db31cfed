package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// LoadError reports an invalid configuration file, with the CUE position
// of the offending value when one is known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// fileConfig mirrors #Config. Pointers distinguish omitted fields.
type fileConfig struct {
	Database *struct {
		Driver *string `json:"driver"`
		Path   *string `json:"path"`
		Key    *string `json:"key"`
	} `json:"database"`
	Transport *struct {
		MinDelay    *string  `json:"minDelay"`
		MaxDelay    *string  `json:"maxDelay"`
		Timeout     *string  `json:"timeout"`
		WriteFail   *float64 `json:"writeFail"`
		ReorderFail *float64 `json:"reorderFail"`
		Seed        *uint64  `json:"seed"`
	} `json:"transport"`
	Seed *struct {
		Jobs         *int     `json:"jobs"`
		Candidates   *int     `json:"candidates"`
		Assessments  *int     `json:"assessments"`
		ArchivedRate *float64 `json:"archivedRate"`
		RandSeed     *uint64  `json:"randSeed"`
	} `json:"seed"`
	Log *struct {
		Level *string `json:"level"`
	} `json:"log"`
}

// Load reads the CUE file at path over Default(). An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates src against the schema and applies it over Default().
// filename is used in error positions.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, formatCUEError(err, filename)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err, filename)
	}

	var file fileConfig
	if err := unified.Decode(&file); err != nil {
		return Config{}, formatCUEError(err, filename)
	}
	return apply(Default(), file, v)
}

// apply overlays the fields present in file onto cfg.
func apply(cfg Config, file fileConfig, v cue.Value) (Config, error) {
	if db := file.Database; db != nil {
		setIf(&cfg.Database.Driver, db.Driver)
		setIf(&cfg.Database.Path, db.Path)
		setIf(&cfg.Database.Key, db.Key)
	}

	if tr := file.Transport; tr != nil {
		for _, d := range []struct {
			field string
			src   *string
			dst   *time.Duration
		}{
			{"transport.minDelay", tr.MinDelay, &cfg.Transport.MinDelay},
			{"transport.maxDelay", tr.MaxDelay, &cfg.Transport.MaxDelay},
			{"transport.timeout", tr.Timeout, &cfg.Transport.Timeout},
		} {
			if d.src == nil {
				continue
			}
			dur, err := time.ParseDuration(*d.src)
			if err != nil || dur < 0 {
				return Config{}, &LoadError{
					Field:   d.field,
					Message: fmt.Sprintf("invalid duration %q", *d.src),
					Pos:     v.LookupPath(cue.ParsePath(d.field)).Pos(),
				}
			}
			*d.dst = dur
		}
		setIf(&cfg.Transport.WriteFail, tr.WriteFail)
		setIf(&cfg.Transport.ReorderFail, tr.ReorderFail)
		setIf(&cfg.Transport.Seed, tr.Seed)

		if cfg.Transport.MaxDelay < cfg.Transport.MinDelay {
			return Config{}, &LoadError{
				Field:   "transport.maxDelay",
				Message: fmt.Sprintf("maxDelay %s is below minDelay %s", cfg.Transport.MaxDelay, cfg.Transport.MinDelay),
				Pos:     v.LookupPath(cue.ParsePath("transport")).Pos(),
			}
		}
	}

	if s := file.Seed; s != nil {
		setIf(&cfg.Seed.Jobs, s.Jobs)
		setIf(&cfg.Seed.Candidates, s.Candidates)
		setIf(&cfg.Seed.Assessments, s.Assessments)
		setIf(&cfg.Seed.ArchivedRate, s.ArchivedRate)
		setIf(&cfg.Seed.RandSeed, s.RandSeed)
	}

	if l := file.Log; l != nil && l.Level != nil {
		level, err := ParseLevel(*l.Level)
		if err != nil {
			return Config{}, &LoadError{Field: "log.level", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("log.level")).Pos()}
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// formatCUEError extracts the first CUE error, preferring a position
// inside filename over one inside the schema.
func formatCUEError(err error, filename string) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	path := first.Path()
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	field := "cue"
	if len(path) > 0 {
		field = strings.Join(path, ".")
	}
	msg, args := first.Msg()
	le := &LoadError{Field: field, Message: fmt.Sprintf(msg, args...)}

	positions := cueerrors.Positions(first)
	for _, pos := range positions {
		if pos.Filename() == filename {
			le.Pos = pos
			return le
		}
	}
	if len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
