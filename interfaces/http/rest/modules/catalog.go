package modules

import (
	"net/http"

	"internship-backend/interfaces/http/rest/handlers"
	apperrors "internship-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// resource names a document collection and the /api prefixes serving it.
type resource struct {
	name       string
	collection string
	prefixes   []string
}

// resources is the portal's route table. "internships" is an alias kept
// for older frontends.
var resources = []resource{
	{name: "jobs", collection: "jobs", prefixes: []string{"/jobs", "/internships"}},
	{name: "applications", collection: "applications", prefixes: []string{"/applications"}},
	{name: "students", collection: "students", prefixes: []string{"/students"}},
	{name: "supervisors", collection: "supervisors", prefixes: []string{"/supervisors"}},
	{name: "supervisionRequests", collection: "supervisionRequests", prefixes: []string{"/supervision-requests"}},
	{name: "supervisorReports", collection: "supervisorReports", prefixes: []string{"/supervisor-reports"}},
	{name: "notifications", collection: "notifications", prefixes: []string{"/notifications"}},
	{name: "companyProfile", collection: "companyProfiles", prefixes: []string{"/company-profile"}},
	{name: "companies", collection: "companies", prefixes: []string{"/companies"}},
	{name: "offerLetters", collection: "offerLetters", prefixes: []string{"/offer-letters"}},
	{name: "misconductReports", collection: "misconductReports", prefixes: []string{"/misconduct-reports"}},
	{name: "internshipAppraisals", collection: "internshipAppraisals", prefixes: []string{"/internship-appraisals"}},
	{name: "progressReports", collection: "progressReports", prefixes: []string{"/progress-reports"}},
	{name: "joiningReports", collection: "joiningReports", prefixes: []string{"/joining-reports"}},
	{name: "supervisorChat", collection: "supervisorChats", prefixes: []string{"/supervisor-chat"}},
	{name: "studentChat", collection: "studentChats", prefixes: []string{"/student-chat"}},
	{name: "completionCertificates", collection: "completionCertificates", prefixes: []string{"/completion-certificates"}},
	{name: "supervisorEvaluations", collection: "supervisorEvaluations", prefixes: []string{"/supervisor-evaluations"}},
	{name: "finalEvaluation", collection: "finalEvaluations", prefixes: []string{"/final-evaluation"}},
	{name: "weeklyReports", collection: "weeklyReports", prefixes: []string{"/weekly-reports"}},
	{name: "internshipReports", collection: "internshipReports", prefixes: []string{"/internship-reports"}},
	{name: "interneeEvaluations", collection: "interneeEvaluations", prefixes: []string{"/internee-evaluations"}},
}

// ResourceModules returns one CRUD module per portal collection.
func ResourceModules(validate *validator.Validate, errs *apperrors.ErrorHandler, logger *zap.Logger) []Module {
	modules := make([]Module, 0, len(resources))
	for _, res := range resources {
		res := res
		modules = append(modules, Module{
			Name:     res.name,
			Prefixes: res.prefixes,
			Build: func() (http.Handler, error) {
				return handlers.NewResourceHandler(res.collection, validate, errs, logger).Routes(), nil
			},
		})
	}
	return modules
}
