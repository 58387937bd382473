package episode

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Record is the scored result of one episode.
type Record struct {
	// Index is the world index, or the max speed in speed sweeps.
	Index    int
	Success  bool
	Collided bool
	Timeout  bool
	Crashed  bool
	Elapsed  float64
	Metric   float64
	// RunID identifies the run in logs. It is not persisted.
	RunID string
}

// Evaluate scores an episode over a reference path of the given length.
func Evaluate(index int, ep Episode, pathLength float64) Record {
	success := ep.Outcome == StateSucceeded
	return Record{
		Index:    index,
		Success:  success,
		Collided: ep.Outcome == StateCollided,
		Timeout:  ep.Outcome == StateTimedOut,
		Crashed:  ep.Crashed,
		Elapsed:  ep.Elapsed,
		Metric:   NavigationMetric(success, pathLength, ep.Elapsed),
	}
}

// ResultFormat selects the columns of a result log line.
type ResultFormat int

const (
	// ResultFormatCompat writes "index success collided timeout elapsed metric".
	ResultFormatCompat ResultFormat = iota
	// ResultFormatExtended adds a trailing crashed column.
	ResultFormatExtended
)

// FormatRecord renders rec as one result log line, including the newline.
func FormatRecord(rec Record, format ResultFormat) string {
	line := fmt.Sprintf("%d %d %d %d %.4f %.4f",
		rec.Index, boolToInt(rec.Success), boolToInt(rec.Collided), boolToInt(rec.Timeout), rec.Elapsed, rec.Metric)
	if format == ResultFormatExtended {
		line += fmt.Sprintf(" %d", boolToInt(rec.Crashed))
	}
	return line + "\n"
}

// ParseRecord parses a result log line in either format.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 && len(fields) != 7 {
		return Record{}, errors.Errorf("expected 6 or 7 columns, got %d", len(fields))
	}
	var rec Record
	var err error
	if rec.Index, err = strconv.Atoi(fields[0]); err != nil {
		return Record{}, errors.Wrap(err, "bad index")
	}
	flags := []flagColumn{
		{&rec.Success, fields[1]},
		{&rec.Collided, fields[2]},
		{&rec.Timeout, fields[3]},
	}
	if len(fields) == 7 {
		flags = append(flags, flagColumn{&rec.Crashed, fields[6]})
	}
	for _, flag := range flags {
		if *flag.dst, err = parseFlag(flag.col); err != nil {
			return Record{}, err
		}
	}
	if rec.Elapsed, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return Record{}, errors.Wrap(err, "bad elapsed time")
	}
	if rec.Metric, err = strconv.ParseFloat(fields[5], 64); err != nil {
		return Record{}, errors.Wrap(err, "bad metric")
	}
	return rec, nil
}

type flagColumn struct {
	dst *bool
	col string
}

func parseFlag(col string) (bool, error) {
	switch col {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, errors.Errorf("bad flag %q", col)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ResultLog is an append-only file of result lines.
type ResultLog struct {
	mu     sync.Mutex
	path   string
	format ResultFormat
}

// NewResultLog returns a log appending to path in the given format.
func NewResultLog(path string, format ResultFormat) *ResultLog {
	return &ResultLog{path: path, format: format}
}

// Path returns the file the log appends to.
func (l *ResultLog) Path() string {
	return l.path
}

// Append writes rec to the end of the log, creating the file if needed.
func (l *ResultLog) Append(rec Record) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	//nolint:gosec
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open result log")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = f.WriteString(FormatRecord(rec, l.format))
	return err
}

// ReadResultLog parses every non-empty line of the result log at path.
func ReadResultLog(path string) ([]Record, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open result log")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var records []Record
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNum)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
