package trash

import (
	"strings"

	"github.com/babarot/smartrm/internal/size"
	"github.com/olekukonko/tablewriter"
)

// Info renders the entries of the can as a table sorted by name, or
// EmptyMessage when there are none
func (c *Can) Info() (string, error) {
	list, err := c.List()
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return EmptyMessage, nil
	}

	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"File Name", "Size", "Removal Time"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range list {
		table.Append([]string{
			e.Name,
			size.HumanReadable(int64(e.Size)),
			e.RemovedAt.String(),
		})
	}
	table.Render()
	return b.String(), nil
}
