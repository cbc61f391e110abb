package model

import (
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseService(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ThirdPartyService
		wantErr bool
	}{
		{name: "exact match", input: "apollo", want: ServiceApollo},
		{name: "uppercase", input: "APOLLO", want: ServiceApollo},
		{name: "mixed case", input: "OpenAI", want: ServiceOpenAI},
		{name: "surrounding whitespace", input: "  instantly ", want: ServiceInstantly},
		{name: "unknown service", input: "hunter", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseService(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "valid services")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAllServices_Stable(t *testing.T) {
	assert.Equal(t, AllServices(), AllServices())
	assert.Len(t, AllServices(), 5)
}

func TestThirdPartyService_ScanValue(t *testing.T) {
	var s ThirdPartyService
	assert.NoError(t, s.Scan("apollo"))
	assert.Equal(t, ServiceApollo, s)

	assert.NoError(t, s.Scan([]byte("openai")))
	assert.Equal(t, ServiceOpenAI, s)

	assert.NoError(t, s.Scan(nil))
	assert.Equal(t, ThirdPartyService(""), s)

	assert.Error(t, s.Scan(123))

	val, err := ServicePerplexity.Value()
	assert.NoError(t, err)
	assert.Equal(t, driver.Value("perplexity"), val)
}

func TestServiceForJobType(t *testing.T) {
	tests := []struct {
		jobType JobType
		want    ThirdPartyService
	}{
		{JobFetchLeads, ServiceApollo},
		{JobVerifyEmail, ServiceMillionVerifier},
		{JobEnrich, ServicePerplexity},
		{JobGenerateCopy, ServiceOpenAI},
		{JobUploadLeads, ServiceInstantly},
	}

	for _, tt := range tests {
		got, ok := ServiceForJobType(tt.jobType)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)
	}

	_, ok := ServiceForJobType(JobType("unknown"))
	assert.False(t, ok)
}
