package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Mandi Rates"

// ExportMandiRates streams the matching raw records as an .xlsx workbook for
// offline analysis. 404 when nothing matches; an empty spreadsheet is not
// useful.
func (h *APIHandler) ExportMandiRates(c *gin.Context) {
	crop := c.Query("crop")
	state := c.Query("state")
	if crop == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crop and state are required"})
		return
	}

	records, err := h.market.Records(crop, state, c.Query("district"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no records match"})
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheet)

	headers := []string{"State", "District", "Market", "Commodity", "Variety", "Arrival Date", "Min Price", "Max Price", "Modal Price", "Updated At"}
	for i, name := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, name)
	}

	for row, r := range records {
		values := []interface{}{
			r.State, r.District, r.Market, r.Commodity, r.Variety,
			r.ArrivalDate, r.MinPrice, r.MaxPrice, r.ModalPrice,
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(exportSheet, cell, v)
		}
	}

	// Keep the header visible while scrolling.
	_ = f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	filename := fmt.Sprintf("mandi_rates_%s_%s.xlsx", crop, state)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
