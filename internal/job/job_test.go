package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{
			name: "minimal valid",
			rec:  Record{TitleOriginal: "Data Engineer", Company: "Acme"},
		},
		{
			name:    "missing title",
			rec:     Record{Company: "Acme"},
			wantErr: true,
		},
		{
			name:    "blank company",
			rec:     Record{TitleOriginal: "Data Engineer", Company: "  "},
			wantErr: true,
		},
		{
			name: "salary range ok",
			rec: Record{
				TitleOriginal: "Data Engineer", Company: "Acme",
				Salary: Salary{Min: floatPtr(8000), Max: floatPtr(12000)},
			},
		},
		{
			name: "salary min above max",
			rec: Record{
				TitleOriginal: "Data Engineer", Company: "Acme",
				Salary: Salary{Min: floatPtr(12000), Max: floatPtr(8000)},
			},
			wantErr: true,
		},
		{
			name: "known work mode",
			rec:  Record{TitleOriginal: "Data Engineer", Company: "Acme", WorkMode: WorkModeHybrid},
		},
		{
			name:    "unknown work mode",
			rec:     Record{TitleOriginal: "Data Engineer", Company: "Acme", WorkMode: "Office"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.rec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
