package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestInventoryWorkbook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lot := env.createLot(t, "L-77", 40)
	env.issue(t, lot.ID, env.inspector, 15)
	_, err := env.tags.CreateTag(ctx, env.manager, dto.CreateTagRequest{TagNumber: "T-1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, env.export.InventoryWorkbook(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Lots", "Holdings", "Requests", "Tags"}, f.GetSheetList())

	lots, err := f.GetRows("Lots")
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "Lot", lots[0][0])
	assert.Equal(t, []string{"L-77", "A4", "40", "15", "25"}, lots[1][:5])

	holdings, err := f.GetRows("Holdings")
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "Ian Inspector", holdings[1][1])

	tags, err := f.GetRows("Tags")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "T-1", tags[1][0])

	requests, err := f.GetRows("Requests")
	require.NoError(t, err)
	assert.Len(t, requests, 1, "header only")
}
