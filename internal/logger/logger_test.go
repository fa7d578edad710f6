package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitLevels(t *testing.T) {
	cases := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{name: "debug", level: "DEBUG", want: logrus.DebugLevel},
		{name: "info", level: "info", want: logrus.InfoLevel},
		{name: "warn", level: "WARN", want: logrus.WarnLevel},
		{name: "error", level: "error", want: logrus.ErrorLevel},
		{name: "invalid falls back to info", level: "loud", want: logrus.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			Init(tc.level, "json")
			if got := GetLogger().Level; got != tc.want {
				t.Fatalf("expected level %v, got %v", tc.want, got)
			}
		})
	}
}

func TestWithFieldsWritesJson(t *testing.T) {
	Init("info", "json")
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(logrus.Fields{"service": "cache1", "step": "PortResolving"}).Info("port resolved")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "cache1" || line["step"] != "PortResolving" {
		t.Fatalf("missing fields in %v", line)
	}
	if line["msg"] != "port resolved" {
		t.Fatalf("unexpected msg %v", line["msg"])
	}
}
