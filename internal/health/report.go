package health

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"miniarima/internal/domain"
)

// Supported report languages. The persisted report is rendered in Russian;
// the admin surface re-renders from the snapshot in the negotiated language.
var ReportLanguages = language.NewMatcher([]language.Tag{
	language.Russian,
	language.English,
})

func init() {
	_ = message.SetString(language.Russian, "Model health report from %s", "Отчёт о состоянии моделей от %s")
	_ = message.SetString(language.Russian, "Working models (%d):", "✅ Рабочие модели (%d):")
	_ = message.SetString(language.Russian, "Failing models (%d):", "❌ Нерабочие модели (%d):")
	_ = message.SetString(language.English, "Working models (%d):", "✅ Working models (%d):")
	_ = message.SetString(language.English, "Failing models (%d):", "❌ Failing models (%d):")
}

// RenderReport renders a deterministic human-readable report: both sections
// are sorted alphabetically regardless of probe completion order.
func RenderReport(lang language.Tag, snapshot *domain.ModelAvailability, loc *time.Location) string {
	if snapshot == nil {
		return ""
	}

	var working []string
	type failure struct {
		model  string
		status domain.ModelStatus
	}
	var failing []failure
	for model, status := range snapshot.Statuses {
		if status.OK() {
			working = append(working, model)
		} else {
			failing = append(failing, failure{model: model, status: status})
		}
	}
	sort.Strings(working)
	sort.Slice(failing, func(i, j int) bool { return failing[i].model < failing[j].model })

	p := message.NewPrinter(lang)
	var b strings.Builder
	b.WriteString(p.Sprintf("Model health report from %s",
		snapshot.CheckedAt.In(loc).Format("02.01.2006 15:04:05 MST")))
	if len(working) > 0 {
		b.WriteString("\n\n")
		b.WriteString(p.Sprintf("Working models (%d):", len(working)))
		for _, model := range working {
			b.WriteString(fmt.Sprintf("\n  •  %s", model))
		}
	}
	if len(failing) > 0 {
		b.WriteString("\n\n")
		b.WriteString(p.Sprintf("Failing models (%d):", len(failing)))
		for _, f := range failing {
			b.WriteString(fmt.Sprintf("\n  •  %s - %s", f.model, f.status))
		}
	}
	return b.String()
}
