package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/hrsync/internal/ir"
)

// validate is the shared validator for drafts and assessments.
// Initialized in init() with custom validators.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report json names ("jobId") rather than Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
		return ir.Stage(fl.Field().String()).Valid()
	})
	validate.RegisterStructValidation(questionStructLevel, ir.Question{})
}

// questionStructLevel enforces rules that span fields of one question.
func questionStructLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(ir.Question)
	if (q.Type == ir.QuestionSingleChoice || q.Type == ir.QuestionMultiChoice) && len(q.Options) == 0 {
		sl.ReportError(q.Options, "options", "Options", "choice_options", "")
	}
	if v := q.Validation; v != nil && v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		sl.ReportError(v.Max, "validation.max", "Validation", "gtefield", "min")
	}
}

// jobDraft is the validated shape of a job's attributes.
type jobDraft struct {
	Title  string   `json:"title" validate:"required,max=200"`
	Status string   `json:"status" validate:"required,oneof=active archived"`
	Tags   []string `json:"tags" validate:"dive,required"`
}

// candidateDraft is the validated shape of a candidate's attributes.
type candidateDraft struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Stage string `json:"stage" validate:"required,stage"`
	JobID string `json:"jobId" validate:"required"`
}

// checkStruct validates v and converts the first failure into a VALIDATION
// *ir.Error naming the offending field.
func checkStruct(op string, collection ir.Collection, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid(op, collection, "", err.Error())
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return invalid(op, collection, field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "stage":
		return fmt.Sprintf("%s must be one of the pipeline stages, got %q", fe.Field(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "choice_options":
		return "choice questions need at least one option"
	case "gtefield":
		return "validation max must be >= min"
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}

// stringAttr reads a string attribute. Absent attributes read as "".
func stringAttr(op string, collection ir.Collection, attrs ir.IRObject, name string) (string, error) {
	switch v := attrs[name].(type) {
	case nil, ir.IRNull:
		return "", nil
	case ir.IRString:
		return string(v), nil
	default:
		return "", invalid(op, collection, name, fmt.Sprintf("%s must be a string, got %T", name, v))
	}
}

// tagsAttr reads, trims and drops empty tags.
func tagsAttr(op string, attrs ir.IRObject) ([]string, error) {
	switch v := attrs[ir.AttrTags].(type) {
	case nil, ir.IRNull:
		return []string{}, nil
	case ir.IRArray:
		tags := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(ir.IRString)
			if !ok {
				return nil, invalid(op, ir.CollectionJobs, ir.AttrTags, "tags must be strings")
			}
			if t := strings.TrimSpace(string(s)); t != "" {
				tags = append(tags, t)
			}
		}
		return tags, nil
	default:
		return nil, invalid(op, ir.CollectionJobs, ir.AttrTags, "tags must be a list of strings")
	}
}

// checkJob validates job attributes and returns them normalized: title
// trimmed, slug derived, tags cleaned.
func checkJob(op string, attrs ir.IRObject) (ir.IRObject, error) {
	var d jobDraft
	var err error
	if d.Title, err = stringAttr(op, ir.CollectionJobs, attrs, ir.AttrTitle); err != nil {
		return nil, err
	}
	if d.Status, err = stringAttr(op, ir.CollectionJobs, attrs, ir.AttrStatus); err != nil {
		return nil, err
	}
	if d.Tags, err = tagsAttr(op, attrs); err != nil {
		return nil, err
	}
	d.Title = strings.TrimSpace(d.Title)

	if err := checkStruct(op, ir.CollectionJobs, d); err != nil {
		return nil, err
	}

	out := attrs.Clone()
	out[ir.AttrTitle] = ir.IRString(d.Title)
	out[ir.AttrSlug] = ir.IRString(ir.Slug(d.Title))
	out[ir.AttrTags] = ir.Strings(d.Tags...)
	return out, nil
}

// checkCandidate validates candidate attributes and returns them normalized.
func checkCandidate(op string, attrs ir.IRObject) (ir.IRObject, error) {
	var d candidateDraft
	var err error
	// Fixed order so the first bad field reported is stable.
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{ir.AttrName, &d.Name},
		{ir.AttrEmail, &d.Email},
		{ir.AttrStage, &d.Stage},
		{ir.AttrJobID, &d.JobID},
	} {
		if *f.dst, err = stringAttr(op, ir.CollectionCandidates, attrs, f.name); err != nil {
			return nil, err
		}
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)

	if err := checkStruct(op, ir.CollectionCandidates, d); err != nil {
		return nil, err
	}

	out := attrs.Clone()
	out[ir.AttrName] = ir.IRString(d.Name)
	out[ir.AttrEmail] = ir.IRString(d.Email)
	return out, nil
}

// checkAssessment validates an assessment document.
func checkAssessment(op string, a ir.Assessment) error {
	return checkStruct(op, collectionAssessments, a)
}
