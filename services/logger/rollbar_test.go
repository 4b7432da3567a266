package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/garderie/core"
)

func TestRollbarLogger(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		log     func(l *RollbarLogger)
		want    []string
		notWant []string
	}{
		{
			name: "info with extras",
			log: func(l *RollbarLogger) {
				l.Info("attendance recorded", map[string]interface{}{"children": 2})
			},
			want: []string{"INFO: attendance recorded", "children:2"},
		},
		{
			name: "person is not printed",
			log: func(l *RollbarLogger) {
				l.Warn("refreshing roster", core.Person{ID: "g-1", Username: "marie"}, errors.New("timeout"))
			},
			want:    []string{"WARN: refreshing roster", "timeout"},
			notWant: []string{"marie"},
		},
		{
			name:    "debug is muted",
			log:     func(l *RollbarLogger) { l.Debug("QR capture started") },
			notWant: []string{"QR capture started"},
		},
		{
			name:  "debug enabled",
			debug: true,
			log:   func(l *RollbarLogger) { l.Debug("QR capture started") },
			want:  []string{"DEBUG: QR capture started"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			conf := &core.Config{Env: "test", TestMode: true, Debug: tt.debug}
			l := NewRollbarLogger(log.New(buf, "", 0), conf)
			tt.log(l)
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}
