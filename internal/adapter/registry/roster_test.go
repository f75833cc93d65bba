package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/classroll/internal/domain"
	"github.com/V4T54L/classroll/internal/pkg/validation"
)

// recordingRequester answers every call with a canned body.
type recordingRequester struct {
	body    string
	err     error
	calls   int
	method  string
	path    string
	query   url.Values
	payload any
}

func (r *recordingRequester) Do(ctx context.Context, creds domain.Credentials, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	r.calls++
	r.method, r.path, r.query, r.payload = method, path, query, payload
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

func newTestRoster(req Requester) *Roster {
	return NewRoster(req, validation.New(), testLogger())
}

const rosterBody = `{
	"outNumClasse": 263001234,
	"outCodEscola": "000123",
	"outDescNomeAbrevEscola": "EE PROF JOAO",
	"outAnoLetivo": "2026",
	"outCodTipoEnsino": 14,
	"outDescTipoEnsino": "ENSINO FUNDAMENTAL DE 9 ANOS",
	"outCodSerieAno": "6",
	"outTurma": "A",
	"outDescricaoTurno": "MANHA",
	"outAlunos": [
		{"outNumRA": "000123", "outDigitoRA": "0", "outSiglaUFRA": "SP", "outNomeAluno": "Ana", "outNumAluno": "01", "outDescSitMatricula": "ATIVO"},
		{"outNumRA": "000456", "outDigitoRA": "x", "outNomeAluno": "Bruno", "outNumAluno": 2, "outDataInicioMatricula": "01/02/2026"},
		{"outNumRA": "", "outNomeAluno": "Sem RA"},
		{"outNumRA": "000789", "outDigitoRA": "", "outNomeAluno": "Sem digito"}
	]
}`

func TestRoster_ClassRoster(t *testing.T) {
	ctx := context.Background()
	creds := testCredentials("https://registry.example")

	t.Run("maps the registry payload", func(t *testing.T) {
		req := &recordingRequester{body: rosterBody}
		roster, err := newTestRoster(req).ClassRoster(ctx, creds, " 263001234 ")
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, classRosterPath, req.path)
		assert.Equal(t, classRosterRequest{ClassCode: "263001234"}, req.payload)

		assert.Equal(t, "263001234", roster.ClassCode)
		assert.Equal(t, "000123", roster.SchoolCode)
		assert.Equal(t, "EE PROF JOAO", roster.SchoolName)
		assert.Equal(t, "14", roster.TeachingTypeCode)
		assert.Equal(t, "6 A", roster.Name())
		assert.Equal(t, "MANHA", roster.Shift)
		require.Len(t, roster.Students, 2)
		assert.Equal(t, domain.ClassRosterEntry{
			RA:        domain.RA{Number: "000123", Digit: "0", State: "SP"},
			Name:      "Ana",
			Number:    1,
			Situation: "ATIVO",
		}, roster.Students[0])
		assert.Equal(t, "000456-X", roster.Students[1].RA.String())
		assert.Equal(t, "SP", roster.Students[1].RA.State)
		assert.Equal(t, 2, roster.Students[1].Number)
		for _, s := range roster.Students {
			assert.NotEqual(t, "000789", s.RA.Number, "entry without a check digit is skipped")
		}
	})

	t.Run("non-numeric class code is rejected before calling", func(t *testing.T) {
		req := &recordingRequester{body: rosterBody}
		_, err := newTestRoster(req).ClassRoster(ctx, creds, "6A")
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Zero(t, req.calls)
	})

	t.Run("remote errors are returned unchanged", func(t *testing.T) {
		remote := &domain.BusinessError{Message: "Classe não encontrada"}
		req := &recordingRequester{err: remote}
		_, err := newTestRoster(req).ClassRoster(ctx, creds, "1")
		assert.Same(t, remote, err)
	})

	t.Run("empty body is an error", func(t *testing.T) {
		req := &recordingRequester{body: ""}
		_, err := newTestRoster(req).ClassRoster(ctx, creds, "1")
		assert.True(t, errors.Is(err, ErrNoContent))
	})

	t.Run("response without outAlunos is an error", func(t *testing.T) {
		req := &recordingRequester{body: `{}`}
		_, err := newTestRoster(req).ClassRoster(ctx, creds, "1")

		var failed *domain.RequestFailedError
		require.True(t, errors.As(err, &failed), "got %v", err)
		assert.Equal(t, http.StatusOK, failed.Status)
		assert.Contains(t, failed.Body, "outAlunos")
		assert.Equal(t, domain.KindRequestFailed, domain.KindOf(err))
	})

	t.Run("explicit empty outAlunos is an empty class", func(t *testing.T) {
		req := &recordingRequester{body: `{"outNumClasse":"1","outAlunos":[]}`}
		roster, err := newTestRoster(req).ClassRoster(ctx, creds, "1")
		require.NoError(t, err)
		assert.NotNil(t, roster.Students)
		assert.Empty(t, roster.Students)
	})
}

func TestRoster_Classes(t *testing.T) {
	ctx := context.Background()
	creds := testCredentials("https://registry.example")
	body := `{"outCodEscola":"123","outAnoLetivo":"2026","outClasses":[
		{"outNumClasse":"263001234","outCodTipoEnsino":"14","outDescTipoEnsino":"EF","outCodSerieAno":"6","outTurma":"A","outDescricaoTurno":"MANHA","outNumSala":"3"}
	]}`

	t.Run("forwards the query", func(t *testing.T) {
		req := &recordingRequester{body: body}
		classes, err := newTestRoster(req).Classes(ctx, creds, ClassesQuery{SchoolYear: "2026", SchoolCode: "123", Grade: "6"})
		require.NoError(t, err)

		assert.Equal(t, classListPath, req.path)
		assert.Equal(t, "2026", req.query.Get("inAnoLetivo"))
		assert.Equal(t, "123", req.query.Get("inCodEscola"))
		assert.Equal(t, "6", req.query.Get("inCodSerieAno"))
		assert.False(t, req.query.Has("inCodTipoEnsino"))

		require.Len(t, classes, 1)
		assert.Equal(t, domain.ClassInfo{
			Code: "263001234", SchoolCode: "123", SchoolYear: "2026", TeachingTypeCode: "14",
			TeachingType: "EF", Grade: "6", Section: "A", Shift: "MANHA", Room: "3",
		}, classes[0])
	})

	t.Run("response without outClasses is an error", func(t *testing.T) {
		req := &recordingRequester{body: `{"outCodEscola":"123"}`}
		_, err := newTestRoster(req).Classes(ctx, creds, ClassesQuery{SchoolYear: "2026", SchoolCode: "123"})
		assert.Equal(t, domain.KindRequestFailed, domain.KindOf(err))
	})

	t.Run("explicit empty outClasses is accepted", func(t *testing.T) {
		req := &recordingRequester{body: `{"outClasses":[]}`}
		classes, err := newTestRoster(req).Classes(ctx, creds, ClassesQuery{SchoolYear: "2026", SchoolCode: "123"})
		require.NoError(t, err)
		assert.Empty(t, classes)
	})

	tests := []struct {
		name  string
		query ClassesQuery
		field string
	}{
		{name: "two-digit year", query: ClassesQuery{SchoolYear: "26", SchoolCode: "123"}, field: "year"},
		{name: "non-numeric year", query: ClassesQuery{SchoolYear: "20a6", SchoolCode: "123"}, field: "year"},
		{name: "non-numeric school", query: ClassesQuery{SchoolYear: "2026", SchoolCode: "E123"}, field: "school_code"},
		{name: "missing school", query: ClassesQuery{SchoolYear: "2026"}, field: "school_code"},
		{name: "non-numeric grade", query: ClassesQuery{SchoolYear: "2026", SchoolCode: "1", Grade: "sixth"}, field: "grade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &recordingRequester{body: body}
			_, err := newTestRoster(req).Classes(ctx, creds, tt.query)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, req.calls, "no remote call on invalid input")
		})
	}
}

func TestRoster_Schools(t *testing.T) {
	ctx := context.Background()
	creds := testCredentials("https://registry.example")
	body := `{"outEscolas":[{"outCodEscola":901,"outDescNomeEscola":"EE CENTRO","outCodDiretoria":"10101","outDescNomeDiretoria":"NORTE","outDescMunicipio":"SAO PAULO"}]}`

	t.Run("defaults the district from credentials", func(t *testing.T) {
		req := &recordingRequester{body: body}
		schools, err := newTestRoster(req).Schools(ctx, creds, "")
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, req.method)
		assert.Equal(t, "9668", req.query.Get("inCodMunicipio"))
		assert.Equal(t, "1", req.query.Get("inCodRedeEnsino"))
		assert.Equal(t, "10101", req.query.Get("inCodDiretoria"))
		require.Len(t, schools, 1)
		assert.Equal(t, "901", schools[0].Code)
		assert.Equal(t, "NORTE", schools[0].District)
	})

	t.Run("response without outEscolas is an error", func(t *testing.T) {
		req := &recordingRequester{body: `{}`}
		_, err := newTestRoster(req).Schools(ctx, creds, "")
		assert.Equal(t, domain.KindRequestFailed, domain.KindOf(err))
	})

	t.Run("rejects a non-numeric district", func(t *testing.T) {
		req := &recordingRequester{body: body}
		_, err := newTestRoster(req).Schools(ctx, creds, "north")
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Zero(t, req.calls)
	})
}

func TestRoster_StudentProfile(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		var got studentProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil || got.Student.Number != "123" || got.Student.State != "SP" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"outDadosPessoais":{"outNomeAluno":"Ana","outDataNascimento":"01/01/2014","outNomeMae":"Maria"}}`)
	})
	client, _ := newTestClient(t, nil)
	roster := newTestRoster(client)

	ra, err := domain.ParseRA("123-0")
	require.NoError(t, err)
	profile, err := roster.StudentProfile(ctx, testCredentials(reg.URL), ra)
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name)
	assert.Equal(t, "Maria", profile.MotherName)
	assert.Equal(t, "123-0", profile.RA.String())
}
