// Package summary counts stored records per month and per author.
package summary

import (
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
)

// Unknown buckets records whose date cannot be parsed.
const Unknown = "unknown"

const monthLayout = "200601"

// Count is one bucket of a summary.
type Count struct {
	Name  string
	Count int
}

// Summary holds per-month (YYYYMM) and per-author counts.
type Summary struct {
	Total   int
	Months  []Count
	Authors []Count
}

// Summarize walks store and counts its records.
func Summarize[V corpus.Record](store *checkpoint.Store[V]) Summary {
	months := map[string]int{}
	authors := map[string]int{}
	total := 0
	if store != nil {
		store.Each(func(_ corpus.Key, v V) bool {
			info := v.Info()
			months[monthOf(info.Date)]++
			authors[info.Author]++
			total++
			return true
		})
	}
	return Summary{
		Total:   total,
		Months:  byName(months),
		Authors: byCount(authors),
	}
}

func monthOf(date string) string {
	t, err := corpus.ParseDate(date)
	if err != nil {
		return Unknown
	}
	return t.Format(monthLayout)
}

// byName orders months chronologically; "unknown" sorts after every digit.
func byName(m map[string]int) []Count {
	out := toCounts(m)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func byCount(m map[string]int) []Count {
	out := toCounts(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	return out
}

// Log writes authors at debug level and months at info level.
func (s Summary) Log(logger *zap.Logger, store string) {
	if logger == nil {
		return
	}
	logger.Debug("author counts", zap.String("store", store), zap.Any("authors", countMap(s.Authors)))
	logger.Info("month counts",
		zap.String("store", store),
		zap.Int("records", s.Total),
		zap.Any("months", countMap(s.Months)),
	)
}

func countMap(counts []Count) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.Name] = c.Count
	}
	return out
}

// Render prints the month and author tables to w.
func (s Summary) Render(w io.Writer, title string) {
	months := table.NewWriter()
	months.SetOutputMirror(w)
	months.SetTitle(title + " by month")
	months.AppendHeader(table.Row{"Month", "Records"})
	for _, c := range s.Months {
		months.AppendRow(table.Row{c.Name, c.Count})
	}
	months.AppendFooter(table.Row{"Total", strconv.Itoa(s.Total)})
	months.SetStyle(table.StyleRounded)
	months.Render()

	authors := table.NewWriter()
	authors.SetOutputMirror(w)
	authors.SetTitle(title + " by author")
	authors.AppendHeader(table.Row{"Author", "Records"})
	for _, c := range s.Authors {
		authors.AppendRow(table.Row{c.Name, c.Count})
	}
	authors.SetStyle(table.StyleRounded)
	authors.Render()
}
