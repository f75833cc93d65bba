package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/V4T54L/classroll/internal/domain"
	"github.com/V4T54L/classroll/internal/pkg/validation"
)

const (
	classRosterPath     = "/RelacaoAlunosClasse/FormacaoClasse"
	classListPath       = "/RelacaoAlunosClasse/RelacaoClasses"
	schoolDirectoryPath = "/DadosBasicos/EscolasPorMunicipio"
	studentProfilePath  = "/Aluno/ExibirFichaAluno"
)

// Requester sends an authenticated registry call. *Client implements it.
type Requester interface {
	Do(ctx context.Context, creds domain.Credentials, method, path string, query url.Values, payload any) (json.RawMessage, error)
}

// Roster maps registry payloads onto domain types.
type Roster struct {
	requester Requester
	validate  *validation.Validator
	logger    *slog.Logger
}

// NewRoster creates a Roster.
func NewRoster(requester Requester, validate *validation.Validator, logger *slog.Logger) *Roster {
	return &Roster{
		requester: requester,
		validate:  validate,
		logger:    logger.With("component", "roster_adapter"),
	}
}

// ClassesQuery selects the classes of a school for a school year.
type ClassesQuery struct {
	SchoolYear   string `json:"year" validate:"required,len=4,numeric"`
	SchoolCode   string `json:"school_code" validate:"required,numeric"`
	TeachingType string `json:"teaching_type" validate:"omitempty,numeric"`
	Grade        string `json:"grade" validate:"omitempty,numeric"`
}

type classRosterRequest struct {
	ClassCode string `json:"inNumClasse" validate:"required,numeric"`
}

type rosterStudent struct {
	RANumber      flexString `json:"outNumRA"`
	RADigit       flexString `json:"outDigitoRA"`
	RAState       flexString `json:"outSiglaUFRA"`
	Name          flexString `json:"outNomeAluno"`
	Number        flexString `json:"outNumAluno"`
	EnrolledFrom  flexString `json:"outDataInicioMatricula"`
	EnrolledUntil flexString `json:"outDataFimMatricula"`
	Situation     flexString `json:"outDescSitMatricula"`
}

type classRosterResponse struct {
	ClassCode        flexString       `json:"outNumClasse"`
	SchoolCode       flexString       `json:"outCodEscola"`
	SchoolName       flexString       `json:"outDescNomeAbrevEscola"`
	SchoolYear       flexString       `json:"outAnoLetivo"`
	TeachingTypeCode flexString       `json:"outCodTipoEnsino"`
	TeachingType     flexString       `json:"outDescTipoEnsino"`
	Grade            flexString       `json:"outCodSerieAno"`
	Section          flexString       `json:"outTurma"`
	Shift            flexString       `json:"outDescricaoTurno"`
	Students         *[]rosterStudent `json:"outAlunos"`
}

type classListItem struct {
	ClassCode        flexString `json:"outNumClasse"`
	TeachingTypeCode flexString `json:"outCodTipoEnsino"`
	TeachingType     flexString `json:"outDescTipoEnsino"`
	Grade            flexString `json:"outCodSerieAno"`
	Section          flexString `json:"outTurma"`
	Shift            flexString `json:"outDescricaoTurno"`
	Room             flexString `json:"outNumSala"`
}

type classListResponse struct {
	SchoolCode flexString       `json:"outCodEscola"`
	SchoolYear flexString       `json:"outAnoLetivo"`
	Classes    *[]classListItem `json:"outClasses"`
}

type schoolItem struct {
	Code         flexString `json:"outCodEscola"`
	Name         flexString `json:"outDescNomeEscola"`
	DistrictCode flexString `json:"outCodDiretoria"`
	District     flexString `json:"outDescNomeDiretoria"`
	Municipality flexString `json:"outDescMunicipio"`
}

type schoolDirectoryResponse struct {
	Schools *[]schoolItem `json:"outEscolas"`
}

type studentKey struct {
	Number string `json:"inNumRA"`
	Digit  string `json:"inDigitoRA"`
	State  string `json:"inSiglaUFRA"`
}

type studentProfileRequest struct {
	Student studentKey `json:"inAluno"`
}

type studentProfileResponse struct {
	Personal struct {
		Name        flexString `json:"outNomeAluno"`
		SocialName  flexString `json:"outNomeSocial"`
		BirthDate   flexString `json:"outDataNascimento"`
		Gender      flexString `json:"outDescSexo"`
		MotherName  flexString `json:"outNomeMae"`
		FatherName  flexString `json:"outNomePai"`
		Nationality flexString `json:"outDescNacionalidade"`
		Email       flexString `json:"outEmail"`
	} `json:"outDadosPessoais"`
}

// ClassRoster fetches the student list and metadata of a class.
func (r *Roster) ClassRoster(ctx context.Context, creds domain.Credentials, classCode string) (domain.ClassRoster, error) {
	req := classRosterRequest{ClassCode: strings.TrimSpace(classCode)}
	if err := r.validate.Struct(req); err != nil {
		return domain.ClassRoster{}, err
	}

	raw, err := r.requester.Do(ctx, creds, http.MethodPost, classRosterPath, nil, req)
	if err != nil {
		return domain.ClassRoster{}, err
	}
	var resp classRosterResponse
	if err := decode(raw, &resp); err != nil {
		return domain.ClassRoster{}, fmt.Errorf("failed to decode class roster %s: %w", req.ClassCode, err)
	}
	if resp.Students == nil {
		return domain.ClassRoster{}, missingField("outAlunos")
	}
	students := *resp.Students

	roster := domain.ClassRoster{
		ClassCode:        req.ClassCode,
		SchoolCode:       string(resp.SchoolCode),
		SchoolName:       string(resp.SchoolName),
		SchoolYear:       string(resp.SchoolYear),
		TeachingTypeCode: string(resp.TeachingTypeCode),
		TeachingType:     string(resp.TeachingType),
		Grade:            string(resp.Grade),
		Section:          string(resp.Section),
		Shift:            string(resp.Shift),
		Students:         make([]domain.ClassRosterEntry, 0, len(students)),
	}
	for _, s := range students {
		if s.RANumber == "" || s.RADigit == "" {
			r.logger.Warn("skipping roster entry without a complete RA", "class_code", req.ClassCode, "name", string(s.Name))
			continue
		}
		state := string(s.RAState)
		if state == "" {
			state = domain.DefaultRAState
		}
		roster.Students = append(roster.Students, domain.ClassRosterEntry{
			RA:            domain.RA{Number: string(s.RANumber), Digit: strings.ToUpper(string(s.RADigit)), State: state},
			Name:          string(s.Name),
			Number:        s.Number.Int(),
			EnrolledFrom:  string(s.EnrolledFrom),
			EnrolledUntil: string(s.EnrolledUntil),
			Situation:     string(s.Situation),
		})
	}
	return roster, nil
}

// Classes lists the classes of a school. The query is validated before any remote call.
func (r *Roster) Classes(ctx context.Context, creds domain.Credentials, q ClassesQuery) ([]domain.ClassInfo, error) {
	q.SchoolYear = strings.TrimSpace(q.SchoolYear)
	q.SchoolCode = strings.TrimSpace(q.SchoolCode)
	if err := r.validate.Struct(q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("inAnoLetivo", q.SchoolYear)
	params.Set("inCodEscola", q.SchoolCode)
	if q.TeachingType != "" {
		params.Set("inCodTipoEnsino", q.TeachingType)
	}
	if q.Grade != "" {
		params.Set("inCodSerieAno", q.Grade)
	}

	raw, err := r.requester.Do(ctx, creds, http.MethodPost, classListPath, params, nil)
	if err != nil {
		return nil, err
	}
	var resp classListResponse
	if err := decode(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode classes of school %s: %w", q.SchoolCode, err)
	}
	if resp.Classes == nil {
		return nil, missingField("outClasses")
	}

	schoolCode := string(resp.SchoolCode)
	if schoolCode == "" {
		schoolCode = q.SchoolCode
	}
	year := string(resp.SchoolYear)
	if year == "" {
		year = q.SchoolYear
	}
	classes := make([]domain.ClassInfo, 0, len(*resp.Classes))
	for _, c := range *resp.Classes {
		classes = append(classes, domain.ClassInfo{
			Code:             string(c.ClassCode),
			SchoolCode:       schoolCode,
			SchoolYear:       year,
			TeachingTypeCode: string(c.TeachingTypeCode),
			TeachingType:     string(c.TeachingType),
			Grade:            string(c.Grade),
			Section:          string(c.Section),
			Shift:            string(c.Shift),
			Room:             string(c.Room),
		})
	}
	return classes, nil
}

// Schools lists the schools of the tenant's municipality and teaching network.
// An empty district falls back to the credentials' district code.
func (r *Roster) Schools(ctx context.Context, creds domain.Credentials, district string) ([]domain.School, error) {
	district = strings.TrimSpace(district)
	if district == "" {
		district = creds.DistrictCode
	}
	if err := r.validate.Var(district, "omitempty,numeric", "district"); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("inCodMunicipio", creds.MunicipalityCode)
	params.Set("inCodRedeEnsino", creds.TeachingNetworkCode)
	if district != "" {
		params.Set("inCodDiretoria", district)
	}

	raw, err := r.requester.Do(ctx, creds, http.MethodGet, schoolDirectoryPath, params, nil)
	if err != nil {
		return nil, err
	}
	var resp schoolDirectoryResponse
	if err := decode(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode school directory: %w", err)
	}
	if resp.Schools == nil {
		return nil, missingField("outEscolas")
	}

	schools := make([]domain.School, 0, len(*resp.Schools))
	for _, s := range *resp.Schools {
		schools = append(schools, domain.School{
			Code:         string(s.Code),
			Name:         string(s.Name),
			DistrictCode: string(s.DistrictCode),
			District:     string(s.District),
			Municipality: string(s.Municipality),
		})
	}
	return schools, nil
}

// StudentProfile fetches the registry record of one student.
func (r *Roster) StudentProfile(ctx context.Context, creds domain.Credentials, ra domain.RA) (domain.StudentProfile, error) {
	if ra.State == "" {
		ra.State = domain.DefaultRAState
	}
	req := studentProfileRequest{Student: studentKey{Number: ra.Number, Digit: ra.Digit, State: ra.State}}

	raw, err := r.requester.Do(ctx, creds, http.MethodPost, studentProfilePath, nil, req)
	if err != nil {
		return domain.StudentProfile{}, err
	}
	var resp studentProfileResponse
	if err := decode(raw, &resp); err != nil {
		return domain.StudentProfile{}, fmt.Errorf("failed to decode student %s: %w", ra, err)
	}

	p := resp.Personal
	return domain.StudentProfile{
		RA:          ra,
		Name:        string(p.Name),
		SocialName:  string(p.SocialName),
		BirthDate:   string(p.BirthDate),
		Gender:      string(p.Gender),
		MotherName:  string(p.MotherName),
		FatherName:  string(p.FatherName),
		Nationality: string(p.Nationality),
		Email:       string(p.Email),
	}, nil
}

// missingField reports a successful response that lacks its primary field.
// An explicit empty list is not missing.
func missingField(name string) error {
	return &domain.RequestFailedError{Status: http.StatusOK, Body: "response has no " + name}
}

func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrNoContent
	}
	return json.Unmarshal(raw, v)
}
