package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForIndustryExact(t *testing.T) {
	t.Parallel()

	set := ForIndustry("construction")
	require.Len(t, set, Count)
	assert.Equal(t, "buildings", set[0].ID)
	assert.Equal(t, "carbon_footprint", set[6].ID)
}

func TestForIndustryCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ForIndustry("construction"), ForIndustry("Construction"))
	assert.Equal(t, ForIndustry("logistics"), ForIndustry("LOGISTICS"))
}

func TestForIndustrySubstring(t *testing.T) {
	t.Parallel()

	// Registered tag contained in a longer one.
	assert.Equal(t, ForIndustry("construction"), ForIndustry("road_construction_services"))
	// Lookup tag contained in a registered one.
	assert.Equal(t, ForIndustry("finance"), ForIndustry("finan"))
}

func TestForIndustryUnderscoreSuffix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ForIndustry("logistics"), ForIndustry("de_logistics"))
}

func TestForIndustryFallsBackToDefault(t *testing.T) {
	t.Parallel()

	set := ForIndustry("interplanetary_mining")
	require.Len(t, set, Count)
	assert.Equal(t, "carbon_footprint", set[0].ID)

	assert.Equal(t, set, ForIndustry(""))
	assert.Equal(t, set, ForIndustry("   "))
}

func TestEverySetHasSevenCriteria(t *testing.T) {
	t.Parallel()

	for tag, set := range sets {
		assert.Len(t, set, Count, "industry %s", tag)
	}
	assert.Len(t, defaultSet, Count)
}

func TestHasSpecializedPrompt(t *testing.T) {
	t.Parallel()

	assert.True(t, HasSpecializedPrompt("construction"))
	assert.True(t, HasSpecializedPrompt("residential_construction"))
	assert.False(t, HasSpecializedPrompt("finance"))
	assert.False(t, HasSpecializedPrompt("unknown_sector"))
}

func TestIDsAndDisplayName(t *testing.T) {
	t.Parallel()

	set := ForIndustry("construction")
	ids := IDs(set)
	require.Len(t, ids, Count)
	assert.Equal(t, "buildings", ids[0])

	assert.Equal(t, "Materials", DisplayName(set, "materials"))
	assert.Equal(t, "unregistered_id", DisplayName(set, "unregistered_id"))
}
