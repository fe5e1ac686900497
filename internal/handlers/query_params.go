package handlers

import (
	"strconv"
	"strings"

	"complaintdesk/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ParseComplaintFilters builds service-level list filters from request
// query parameters. Paging uses page/page_size with bounded defaults;
// invalid values fall back rather than erroring, matching the tolerant
// behavior expected by dashboard clients.
func ParseComplaintFilters(c *gin.Context) services.ComplaintFilters {
	filters := services.ComplaintFilters{
		Status:   strings.TrimSpace(c.Query("status")),
		Category: strings.TrimSpace(c.Query("category")),
		Priority: strings.TrimSpace(c.Query("priority")),
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filters.Limit = size
	filters.Offset = (page - 1) * size
	return filters
}
