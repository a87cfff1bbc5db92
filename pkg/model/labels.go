package model

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Display labels are looked up by key; state logic never reads them.
var labelCatalog = newLabelCatalog()

type labelPair struct {
	ru string
	en string
}

var labelTable = map[string]labelPair{
	"program.status.NEW":         {"новая", "new"},
	"program.status.CREATED":     {"создана", "created"},
	"program.status.UNASSIGNED":  {"не распределена", "unassigned"},
	"program.status.ASSIGNED":    {"распределена", "assigned"},
	"program.status.ACTIVE":      {"в работе", "in progress"},
	"program.status.CALCULATING": {"на приёмке", "awaiting acceptance"},
	"program.status.DONE":        {"выполнена", "done"},

	"part.status.UNASSIGNED":   {"не распределена", "unassigned"},
	"part.status.ASSIGNED":     {"распределена", "assigned"},
	"part.status.DONE_PARTIAL": {"выполнена частично", "partially done"},
	"part.status.DONE_FULL":    {"выполнена полностью", "fully done"},

	"wo.status.CREATED":  {"создан", "created"},
	"wo.status.ACTIVE":   {"в работе", "in progress"},
	"wo.status.FINISHED": {"завершен", "finished"},

	"priority.LOW":      {"низкий", "low"},
	"priority.MEDIUM":   {"средний", "medium"},
	"priority.HIGH":     {"высокий", "high"},
	"priority.CRITICAL": {"критический", "critical"},

	"job.OPERATOR":     {"оператор", "operator"},
	"job.MASTER":       {"мастер", "master"},
	"job.TECHNOLOGIST": {"технолог", "technologist"},

	"event.sync.completed":      {"синхронизация завершена", "sync completed"},
	"event.sync.failed":         {"ошибка синхронизации", "sync failed"},
	"event.program.created":     {"программа создана", "program created"},
	"event.program.updated":     {"программа обновлена", "program updated"},
	"event.program.deleted":     {"программа удалена", "program deleted"},
	"event.program.assigned":    {"программа распределена", "program assigned"},
	"event.program.started":     {"программа запущена", "program started"},
	"event.program.calculating": {"программа на приёмке", "program awaiting acceptance"},
	"event.program.done":        {"программа выполнена", "program done"},
	"event.parts.accepted":      {"детали приняты", "parts accepted"},
	"event.parts.claimed":       {"детали изготовлены", "parts claimed"},
	"event.worker.registered":   {"исполнитель добавлен", "worker registered"},
	"event.worker.deactivated":  {"исполнитель отключён", "worker deactivated"},
	"event.cell.registered":     {"ячейка добавлена", "storage cell registered"},
}

// Languages lists the display languages with a full label set.
var Languages = []language.Tag{language.English, language.Russian}

// ParseLanguage resolves a BCP 47 code to one of Languages.
func ParseLanguage(code string) (language.Tag, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language %q: %w", code, err)
	}
	base, _ := tag.Base()
	for _, l := range Languages {
		if lb, _ := l.Base(); lb == base {
			return l, nil
		}
	}
	return language.Und, fmt.Errorf("unsupported language %q", code)
}

func newLabelCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, pair := range labelTable {
		if err := b.SetString(language.Russian, key, pair.ru); err != nil {
			panic(err)
		}
		if err := b.SetString(language.English, key, pair.en); err != nil {
			panic(err)
		}
	}
	return b
}

// Label resolves a display label for key in the given language.
// Unknown keys are returned unchanged.
func Label(tag language.Tag, key string) string {
	p := message.NewPrinter(tag, message.Catalog(labelCatalog))
	return p.Sprintf(key)
}

// Label returns the localized display name of the status.
func (s ProgramStatus) Label(tag language.Tag) string {
	return Label(tag, "program.status."+string(s))
}

// Label returns the localized display name of the status.
func (s PartStatus) Label(tag language.Tag) string {
	return Label(tag, "part.status."+string(s))
}

// Label returns the localized display name of the status.
func (s WOStatus) Label(tag language.Tag) string {
	return Label(tag, "wo.status."+string(s))
}

// Label returns the localized display name of the priority. An unset
// priority has no label.
func (p Priority) Label(tag language.Tag) string {
	if p == "" {
		return ""
	}
	return Label(tag, "priority."+string(p))
}

// Label returns the localized display name of the job.
func (j Job) Label(tag language.Tag) string {
	return Label(tag, "job."+string(j))
}

// ActionLabel returns the localized name of an audit action, or the action
// itself when it has no label.
func ActionLabel(tag language.Tag, action string) string {
	key := "event." + action
	if label := Label(tag, key); label != key {
		return label
	}
	return action
}
