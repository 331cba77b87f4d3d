package log

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format expands %time, %level, %field, %msg, %caller, %func and %n in the
// configured pattern.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%caller", getCaller(entry),
		"%func", getFunc(entry),
		"%n", "\n",
	)
	out := r.Replace(f.pattern)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out), nil
}

// getCaller returns package/file.go:line, or "-" without caller reporting.
func getCaller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	pkg := ""
	if fn := entry.Caller.Function; fn != "" {
		if i := strings.LastIndex(fn, "/"); i >= 0 {
			fn = fn[i+1:]
		}
		if i := strings.Index(fn, "."); i >= 0 {
			pkg = fn[:i]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, filepath.Base(entry.Caller.File), entry.Caller.Line)
}

func getFunc(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	fn := entry.Caller.Function
	if i := strings.LastIndex(fn, "."); i >= 0 && i+1 < len(fn) {
		return fn[i+1:]
	}
	return fn
}

// buildFields renders entry data as sorted key=value pairs.
func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, k+"="+fmt.Sprint(entry.Data[k]))
	}
	return strings.Join(fields, " ")
}
