package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsToMapOmitsAbsentFields(t *testing.T) {
	empty := Metrics{}
	assert.Empty(t, empty.ToMap())

	zero := Metrics{SecurityRate: Float64Ptr(0), TotalVulnerabilities: IntPtr(0)}
	m := zero.ToMap()
	assert.Equal(t, 0.0, m["security_rate"], "a genuine zero must survive")
	assert.Equal(t, 0, m["total_vulnerabilities"])
}

func TestMetricsStringDistinguishesAbsentFromZero(t *testing.T) {
	assert.Equal(t, "no metrics computed", Metrics{}.String())

	zero := Metrics{SecurityRate: Float64Ptr(0)}
	assert.Contains(t, zero.String(), "security_rate=0.0%")
}

func TestMetricsStringStableKeyOrder(t *testing.T) {
	m := Metrics{PassAtK: map[string]float64{"pass@10": 40, "pass@1": 25}}
	assert.Equal(t, "pass@1=25.0% pass@10=40.0%", m.String())
}

func TestBuildMetrics(t *testing.T) {
	t.Run("nil inputs leave fields absent", func(t *testing.T) {
		m := BuildMetrics(nil, nil)
		assert.Nil(t, m.SecurityRate)
		assert.Nil(t, m.TotalVulnerabilities)
		assert.Nil(t, m.PassAtK)
	})

	t.Run("security pass fills its fields", func(t *testing.T) {
		m := BuildMetrics(&SecurityResult{
			Rate:                 75.0,
			TotalVulnerabilities: 2,
			CWEBreakdown:         map[string]int{"CWE-089": 2},
		}, map[string]float64{"pass@1": 50.0})

		assert.InDelta(t, 75.0, *m.SecurityRate, 1e-9)
		assert.Equal(t, 2, *m.TotalVulnerabilities)
		assert.Equal(t, map[string]int{"CWE-089": 2}, m.CWEBreakdown)
		assert.InDelta(t, 50.0, m.PassAtK["pass@1"], 1e-9)
	})
}
