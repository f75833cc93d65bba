package pii

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"outAutenticacao", "outNomeMae", " inSenha "}, logger)

	tests := []struct {
		name           string
		input          string
		expected       string
		expectRedacted bool
		expectErr      bool
	}{
		{
			name:           "Redact token field",
			input:          `{"outAutenticacao": "abc", "outUsuario": "prof"}`,
			expected:       `{"outAutenticacao":"[REDACTED]","outUsuario":"prof"}`,
			expectRedacted: true,
		},
		{
			name:           "Redact nested student data",
			input:          `{"outAlunos": [{"outNomeAluno": "Ana", "outNomeMae": "Maria"}]}`,
			expected:       `{"outAlunos":[{"outNomeAluno":"Ana","outNomeMae":"[REDACTED]"}]}`,
			expectRedacted: true,
		},
		{
			name:           "Field names are case insensitive",
			input:          `{"INSENHA": "x"}`,
			expected:       `{"INSENHA":"[REDACTED]"}`,
			expectRedacted: true,
		},
		{
			name:     "No fields to redact keeps payload untouched",
			input:    `{"outErro": "Classe inexistente"}`,
			expected: `{"outErro": "Classe inexistente"}`,
		},
		{
			name:     "Empty payload",
			input:    ``,
			expected: ``,
		},
		{
			name:      "Invalid JSON",
			input:     `{"outAutenticacao": "abc"`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, redacted, err := redactor.Redact([]byte(tt.input))
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if redacted != tt.expectRedacted {
				t.Errorf("expected redacted flag %v, got %v", tt.expectRedacted, redacted)
			}
			if string(out) != tt.expected {
				t.Errorf("unexpected output: got %s, want %s", string(out), tt.expected)
			}
		})
	}
}

func TestRedactor_ForLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"outAutenticacao"}, logger)

	if got := redactor.ForLog([]byte("<html>bad gateway</html>")); got != RedactedPlaceholder {
		t.Errorf("expected a non-JSON body to be replaced, got %q", got)
	}

	long := `{"outErro":"` + strings.Repeat("x", 3000) + `"}`
	got := redactor.ForLog([]byte(long))
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("expected a truncation marker at the end of %d bytes", len(got))
	}
	if want := maxLoggedBody + len("...(truncated)"); len(got) != want {
		t.Errorf("expected %d bytes, got %d", want, len(got))
	}
}
