package vision

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Labels is the class table for a detector model. The class index is
// carried alongside the name throughout the pipeline, so nothing ever
// needs a reverse name-to-index search.
type Labels struct {
	names []string
}

// NewLabels builds a table from an ordered name list.
func NewLabels(names []string) *Labels {
	return &Labels{names: names}
}

// LoadLabelsFile reads one class name per line, the usual format shipped
// next to YOLO models.
func LoadLabelsFile(path string) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open labels file %s", path)
	}
	defer f.Close()

	names := make([]string, 0, 80)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "can't read labels file %s", path)
	}
	return &Labels{names: names}, nil
}

// Name returns the label for a class index, or a stable placeholder for
// out-of-range indices so a misbehaving model can't crash the pipeline.
func (l *Labels) Name(classID int) string {
	if classID < 0 || classID >= len(l.names) {
		return "unknown"
	}
	return l.names[classID]
}

// Count returns the number of known classes.
func (l *Labels) Count() int {
	return len(l.names)
}
