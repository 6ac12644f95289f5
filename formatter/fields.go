package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields renders entry data except the source as "[k: v, ...] ", sorted by
// key. Empty data renders as "".
func Fields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == sourceKey {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %v", k, entry.Data[k]))
	}
	return fmt.Sprintf("[%s] ", strings.Join(pairs, ", "))
}
