package csvmigrate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Engine drives a migration: it reads source records, runs each through the
// row migrator and hands the resulting target instances to a visitor.
type Engine struct {
	source         *Source
	sourcePath     string
	targetName     string
	mm             Metamodel
	fields         FieldsSpec
	defaults       DefaultsSpec
	filters        FiltersSpec
	shims          *Shims
	conv           Converter
	from           int
	to             int
	rejectsPath    string
	extractPath    string
	extractHeaders []string
	logger         zerolog.Logger
	progress       io.Writer
	create         bool
	uniquify       bool

	target   Class
	mapping  *Mapping
	migrator *rowMigrator
	ownSrc   bool
}

type EngineOption func(*Engine)

// WithSource sets an already opened record source.
func WithSource(source *Source) EngineOption {
	return func(e *Engine) {
		e.source = source
	}
}

// WithSourceFile sets the path of the CSV source file.
func WithSourceFile(path string) EngineOption {
	return func(e *Engine) {
		e.sourcePath = path
	}
}

// WithTarget sets the name of the target class.
func WithTarget(name string) EngineOption {
	return func(e *Engine) {
		e.targetName = name
	}
}

// WithMetamodel sets the domain metamodel.
func WithMetamodel(mm Metamodel) EngineOption {
	return func(e *Engine) {
		e.mm = mm
	}
}

// WithFieldConfig appends field mapping entries. May be given multiple times.
func WithFieldConfig(fields FieldsSpec) EngineOption {
	return func(e *Engine) {
		e.fields = append(e.fields, fields...)
	}
}

// WithDefaultsConfig appends defaults entries.
func WithDefaultsConfig(defaults DefaultsSpec) EngineOption {
	return func(e *Engine) {
		e.defaults = append(e.defaults, defaults...)
	}
}

// WithFilterConfig appends filter attachments.
func WithFilterConfig(filters FiltersSpec) EngineOption {
	return func(e *Engine) {
		e.filters = append(e.filters, filters...)
	}
}

// WithConfig appends a loaded configuration bundle.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.fields = append(e.fields, cfg.Fields...)
		e.defaults = append(e.defaults, cfg.Defaults...)
		e.filters = append(e.filters, cfg.Filters...)
	}
}

// WithShims sets the behavior override registry.
func WithShims(shims *Shims) EngineOption {
	return func(e *Engine) {
		e.shims = shims
	}
}

// WithConverter sets a cell converter for sources opened by the engine.
func WithConverter(conv Converter) EngineOption {
	return func(e *Engine) {
		e.conv = conv
	}
}

// WithFrom sets the first record to migrate (1-based, inclusive).
func WithFrom(from int) EngineOption {
	return func(e *Engine) {
		e.from = from
	}
}

// WithTo sets the record to stop at (1-based, exclusive).
func WithTo(to int) EngineOption {
	return func(e *Engine) {
		e.to = to
	}
}

// WithRejects writes failed source rows to a CSV file, keeping the original
// cells, instead of aborting the migration.
func WithRejects(path string) EngineOption {
	return func(e *Engine) {
		e.rejectsPath = path
	}
}

// WithExtract writes each migrated target through its extractor. With
// headers the extract file is CSV, without it is plain lines.
func WithExtract(path string, headers []string) EngineOption {
	return func(e *Engine) {
		e.extractPath = path
		e.extractHeaders = headers
	}
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgress enables textual progress reporting.
func WithProgress(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.progress = w
	}
}

// WithCreate sets the advisory create flag visitors may consult.
func WithCreate(create bool) EngineOption {
	return func(e *Engine) {
		e.create = create
	}
}

// WithUniquify enables natural key uniquification.
func WithUniquify(uniquify bool) EngineOption {
	return func(e *Engine) {
		e.uniquify = uniquify
	}
}

// New builds an engine. Target, metamodel, source and at least one field
// mapping are required.
func New(options ...EngineOption) (*Engine, error) {
	ret := &Engine{
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(ret)
	}

	if ret.mm == nil {
		return nil, NewConfigError("engine requires a metamodel")
	}
	if ret.targetName == "" {
		return nil, NewConfigError("engine requires a target class")
	}
	target, ok := ret.mm.ClassByName(ret.targetName)
	if !ok {
		return nil, NewConfigErrorf("unknown target class '%s'", ret.targetName)
	}
	ret.target = target

	if ret.source == nil {
		if ret.sourcePath == "" {
			return nil, NewConfigError("engine requires a source")
		}
		source, err := OpenSource(ret.sourcePath, WithSourceConverter(ret.conv))
		if err != nil {
			return nil, err
		}
		ret.source = source
		ret.ownSrc = true
	}

	mapping, err := CompileMapping(ret.mm, ret.target, ret.source.Accessor,
		ret.fields, ret.defaults, ret.filters, WithMappingShims(ret.shims))
	if err != nil {
		if ret.ownSrc {
			_ = ret.source.Close()
		}
		return nil, err
	}
	ret.mapping = mapping
	ret.migrator = newRowMigrator(mapping, ret.shims, ret.uniquify)

	return ret, nil
}

// Mapping returns the compiled mapping.
func (e *Engine) Mapping() *Mapping {
	return e.mapping
}

// Create returns the advisory create flag.
func (e *Engine) Create() bool {
	return e.create
}

// Stats are the counters of one migration run.
type Stats struct {
	Migrated int // records that produced a target
	Rejected int // records that failed or produced no target
	Total    int // records processed inside the window
}

// Migrate runs the migration, calling the visitor for every migrated target
// with the target instance and the source record it came from. Failed
// records go to the rejects file when one is configured, otherwise the first
// failure aborts the run.
func (e *Engine) Migrate(ctx context.Context, visit func(Instance, *Record) error) (Stats, error) {
	var stats Stats

	var rejects, extract *Sink
	defer func() {
		if rejects != nil {
			_ = rejects.Close()
		}
		if extract != nil {
			_ = extract.Close()
		}
		if e.ownSrc {
			_ = e.source.Close()
		}
	}()

	reject := func(raw []string) error {
		if rejects == nil {
			var err error
			rejects, err = OpenSink(e.rejectsPath, e.source.FieldNames())
			if err != nil {
				return err
			}
		}
		return rejects.AppendRaw(raw)
	}

	e.logger.Debug().Str("target", e.target.Name()).Msg("migration starting")

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := e.source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return stats, err
		}
		num := e.source.RecordNumber()

		if e.to > 0 && num >= e.to {
			break
		}
		if e.from > 0 && num < e.from {
			continue
		}
		stats.Total++

		target, err := e.migrator.migrateRow(rec)
		if err != nil {
			e.logger.Warn().Int("record", num).Err(err).Msg("record failed to migrate")
			if e.rejectsPath == "" {
				return stats, NewRecordError(num, err)
			}
			if rerr := reject(e.source.Raw()); rerr != nil {
				return stats, rerr
			}
			stats.Rejected++
			continue
		}
		if target == nil {
			e.logger.Debug().Int("record", num).Msg("record produced no target")
			if e.rejectsPath != "" {
				if rerr := reject(e.source.Raw()); rerr != nil {
					return stats, rerr
				}
			}
			stats.Rejected++
			continue
		}

		if visit != nil {
			if err := visit(target, rec); err != nil {
				return stats, NewRecordError(num, err)
			}
		}

		if e.extractPath != "" {
			if extract == nil {
				if len(e.extractHeaders) > 0 {
					extract, err = OpenSink(e.extractPath, e.extractHeaders)
				} else {
					extract, err = OpenLineSink(e.extractPath)
				}
				if err != nil {
					return stats, err
				}
			}
			if err := extractInstance(e.shims, target, extract); err != nil {
				return stats, NewRecordError(num, err)
			}
		}

		stats.Migrated++
		if e.progress != nil {
			fmt.Fprint(e.progress, ".")
		}
	}

	if e.progress != nil {
		fmt.Fprintf(e.progress, "\n%d of %d migrated, %d rejected\n", stats.Migrated, stats.Total, stats.Rejected)
	}
	e.logger.Debug().
		Int("migrated", stats.Migrated).
		Int("rejected", stats.Rejected).
		Int("total", stats.Total).
		Msg("migration finished")

	return stats, nil
}
