package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWatch_InitialState(t *testing.T) {
	w := NewWatch("Constellation", "https://shop.example/search?q=omega", "Victor")

	assert.Equal(t, StatusReady, w.Status)
	assert.NotNil(t, w.Results)
	assert.Empty(t, w.Results)
	assert.Nil(t, w.LastScan)
	assert.Equal(t, "Victor", w.Site)
}

func TestWatch_Target(t *testing.T) {
	w := NewWatch("Speedmaster", "https://shop.example/s", "")
	w.Results = ResultSet{"Omega Speedmaster 1969"}

	target := w.Target()
	assert.Equal(t, "https://shop.example/s", target.URL)
	assert.Equal(t, "Speedmaster", target.MatchKey)
	assert.Equal(t, ResultSet{"Omega Speedmaster 1969"}, target.PreviousResults)
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, StatusNothingFound, ResultStatus(nil))
	assert.Equal(t, StatusNothingFound, ResultStatus(ResultSet{}))
	assert.Equal(t, "Found (2)", ResultStatus(ResultSet{"a", "b"}))
}

func TestNewItemsStatus(t *testing.T) {
	assert.Equal(t, "Nothing new", NewItemsStatus(0))
	assert.Equal(t, "1 new item!", NewItemsStatus(1))
	assert.Equal(t, "4 new items!", NewItemsStatus(4))
}

func TestScanOutcome_HasNewItems(t *testing.T) {
	var nilOutcome *ScanOutcome
	assert.False(t, nilOutcome.HasNewItems())
	assert.False(t, (&ScanOutcome{}).HasNewItems())
	assert.True(t, (&ScanOutcome{NewItems: ResultSet{"x"}}).HasNewItems())
}

func TestInputError(t *testing.T) {
	err := NewInputError("url", "must be absolute")
	assert.Equal(t, "invalid url: must be absolute", err.Error())
}
