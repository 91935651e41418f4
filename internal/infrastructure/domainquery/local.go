package domainquery

import (
	"context"
	"strings"
	"sync"

	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/tool"
)

// QueryFunc answers one tool's query.
type QueryFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Local is an in-process domain query service backed by a name → QueryFunc table.
// Tools without a registered function return nothing, which the executor reports as not found.
type Local struct {
	mu    sync.RWMutex
	funcs map[string]QueryFunc
}

var _ service.DomainQueryService = (*Local)(nil)

// NewLocal 创建空的进程内查询服务
func NewLocal() *Local {
	return &Local{funcs: make(map[string]QueryFunc)}
}

// Register 注册工具查询函数
func (l *Local) Register(name string, fn QueryFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[name] = fn
}

// Query implements service.DomainQueryService.
func (l *Local) Query(ctx context.Context, req service.QueryRequest) (interface{}, error) {
	if !req.Valid() {
		return nil, ErrInvalidRequest
	}
	l.mu.RLock()
	fn, ok := l.funcs[req.Tool()]
	l.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return fn(ctx, req.Args())
}

// --- 演示数据 ---

// NewDemo returns a Local answering the public clinic tools from static data.
func NewDemo() *Local {
	l := NewLocal()
	l.Register("list_treatments", filterBy(demoTreatments, "category"))
	l.Register("list_specializations", func(context.Context, map[string]interface{}) (interface{}, error) {
		return demoSpecializations, nil
	})
	l.Register("list_dentists", filterBy(demoDentists, "specialization"))
	l.Register("get_clinic_hours", filterBy(demoHours, "day"))
	l.Register("get_treatment_details", findBy(demoTreatments, "treatmentName", "name"))
	l.Register("get_dentist_details", findBy(demoDentists, "dentistName", "name"))
	return l
}

type record = map[string]interface{}

var demoTreatments = []record{
	{"name": "Dental Cleaning", "category": "cleaning", "durationMinutes": 45, "priceRange": "$80-$120"},
	{"name": "Teeth Whitening", "category": "cosmetic", "durationMinutes": 60, "priceRange": "$250-$400"},
	{"name": "Root Canal", "category": "endodontics", "durationMinutes": 90, "priceRange": "$700-$1100"},
	{"name": "Braces Consultation", "category": "orthodontics", "durationMinutes": 30, "priceRange": "$0-$50"},
	{"name": "Tooth Extraction", "category": "surgery", "durationMinutes": 40, "priceRange": "$150-$300"},
}

var demoSpecializations = []string{"General Dentistry", "Orthodontics", "Endodontics", "Oral Surgery", "Cosmetic Dentistry"}

var demoDentists = []record{
	{"name": "Dr. Maria Chen", "specialization": "Orthodontics", "workingDays": []string{"Mon", "Tue", "Thu"}},
	{"name": "Dr. Samuel Okafor", "specialization": "Endodontics", "workingDays": []string{"Mon", "Wed", "Fri"}},
	{"name": "Dr. Lena Novak", "specialization": "General Dentistry", "workingDays": []string{"Tue", "Wed", "Thu", "Fri"}},
}

var demoHours = []record{
	{"day": "Monday", "open": "08:00", "close": "18:00"},
	{"day": "Tuesday", "open": "08:00", "close": "18:00"},
	{"day": "Wednesday", "open": "08:00", "close": "18:00"},
	{"day": "Thursday", "open": "08:00", "close": "20:00"},
	{"day": "Friday", "open": "08:00", "close": "16:00"},
	{"day": "Saturday", "open": "09:00", "close": "13:00"},
	{"day": "Sunday", "closed": true},
}

// filterBy returns rows whose field contains the optional argument, case-insensitively.
func filterBy(rows []record, arg string) QueryFunc {
	return func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		want, _ := tool.String(args, arg)
		want = strings.ToLower(strings.TrimSpace(want))
		out := make([]record, 0, len(rows))
		for _, row := range rows {
			if want == "" || strings.Contains(strings.ToLower(fieldString(row, arg)), want) {
				out = append(out, row)
			}
		}
		return out, nil
	}
}

// findBy returns the first row whose field partially matches the argument.
func findBy(rows []record, arg, field string) QueryFunc {
	return func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		want, _ := tool.String(args, arg)
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			return nil, nil
		}
		for _, row := range rows {
			if strings.Contains(strings.ToLower(fieldString(row, field)), want) {
				return row, nil
			}
		}
		return nil, nil
	}
}

func fieldString(row record, field string) string {
	s, _ := row[field].(string)
	return s
}
