// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package workload loads the startup workload descriptor: a JSON file
// naming the cluster size and every job the simulator will later submit
// by id.
package workload

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"

	apperrors "github.com/jontk/batsched/pkg/errors"
)

// Job is one preloaded job descriptor.
type Job struct {
	ID       int     `json:"id"`
	SubTime  float64 `json:"subtime"`
	Walltime float64 `json:"walltime"`
	Res      int     `json:"res"`
	Profile  string  `json:"profile"`
}

// Descriptor is the parsed workload file.
type Descriptor struct {
	NbRes int   `json:"nb_res"`
	Jobs  []Job `json:"jobs"`
}

// Table is the Descriptor reshaped for O(1) lookup by job id, the shape
// internal/policy.JobLookup needs.
type Table struct {
	NbRes int
	byID  map[int]Job
}

// Job implements policy.JobLookup.
func (t *Table) Job(jobID int) (resources int, walltime float64, ok bool) {
	j, ok := t.byID[jobID]
	if !ok {
		return 0, 0, false
	}
	return j.Res, j.Walltime, true
}

// schema is the shape every workload descriptor must satisfy: an
// object with an integer nb_res and an array of job objects carrying
// the fields spec.md §6 names.
var schema = &openapi3.Schema{
	Type:     &openapi3.Types{"object"},
	Required: []string{"nb_res", "jobs"},
	Properties: openapi3.Schemas{
		"nb_res": openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{"integer"}, Min: floatPtr(1)}),
		"jobs": openapi3.NewSchemaRef("", &openapi3.Schema{
			Type: &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef("", &openapi3.Schema{
				Type:     &openapi3.Types{"object"},
				Required: []string{"id", "subtime", "walltime", "res"},
				Properties: openapi3.Schemas{
					"id":       openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{"integer"}}),
					"subtime":  openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{"number"}}),
					"walltime": openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{"number"}}),
					"res":      openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{"integer"}, Min: floatPtr(1)}),
					"profile":  openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{"string"}}),
				},
			}),
		}),
	},
}

func floatPtr(f float64) *float64 { return &f }

// Load reads and validates the workload descriptor at path, returning a
// Table ready for policy.JobLookup use.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidWorkload, fmt.Sprintf("reading workload file %q", path), err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidWorkload, "workload file is not valid JSON", err)
	}
	if err := schema.VisitJSON(generic); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidWorkload, "workload file does not match the expected shape", err)
	}

	var desc Descriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidWorkload, "decoding workload file", err)
	}

	byID := make(map[int]Job, len(desc.Jobs))
	for _, j := range desc.Jobs {
		byID[j.ID] = j
	}

	return &Table{NbRes: desc.NbRes, byID: byID}, nil
}
