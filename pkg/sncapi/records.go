package sncapi

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/logging"
)

// tableResponse is the Table API envelope.
type tableResponse struct {
	Result []map[string]any `json:"result"`
}

// RecordPage holds the records collected so far plus the failure that
// stopped pagination, if any. A populated Err with non-empty Records means
// partial success.
type RecordPage struct {
	Records []map[string]any
	Err     error
}

// GetRecords paginates a table until exhaustion or the page cap, using
// sysparm_offset/sysparm_limit. A mid-pagination failure returns whatever
// was collected before it, with the error recorded; extraction is never
// all-or-nothing.
func (s *Session) GetRecords(ctx context.Context, table string, fields []string, pageSize, pageCap int) RecordPage {
	if pageSize <= 0 {
		pageSize = 100
	}

	var records []map[string]any
	path := s.TablePath(table)

	for page := 0; pageCap <= 0 || page < pageCap; page++ {
		params := url.Values{}
		params.Set("sysparm_offset", strconv.Itoa(page*pageSize))
		params.Set("sysparm_limit", strconv.Itoa(pageSize))
		params.Set("sysparm_exclude_reference_link", "true")
		if len(fields) > 0 {
			params.Set("sysparm_fields", strings.Join(fields, ","))
		}

		body, err := s.Get(ctx, path, params)
		if err != nil {
			s.logger.Warn("pagination stopped",
				zap.String("table", table),
				zap.Int("page", page),
				zap.Int("collected", len(records)),
				zap.String("error", logging.SanitizeError(err)))
			if len(records) > 0 {
				return RecordPage{Records: records, Err: apperrors.PartialExtraction(len(records), err)}
			}
			return RecordPage{Err: err}
		}

		var parsed tableResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			decodeErr := apperrors.Validation("decode response for table %s: %v", table, err)
			if len(records) > 0 {
				return RecordPage{Records: records, Err: apperrors.PartialExtraction(len(records), decodeErr)}
			}
			return RecordPage{Err: decodeErr}
		}

		records = append(records, parsed.Result...)

		// A short page means the table is exhausted.
		if len(parsed.Result) < pageSize {
			return RecordPage{Records: records}
		}
	}

	s.logger.Debug("page cap reached",
		zap.String("table", table),
		zap.Int("collected", len(records)))
	return RecordPage{Records: records}
}

// InstanceInfo reads the build name and version properties, best effort.
// Missing properties are not an error; the report just omits the version.
func (s *Session) InstanceInfo(ctx context.Context) (dbType, version string) {
	params := url.Values{}
	params.Set("sysparm_query", "nameINglide.buildname,glide.war")
	params.Set("sysparm_fields", "name,value")
	params.Set("sysparm_limit", "10")

	body, err := s.Get(ctx, s.TablePath("sys_properties"), params)
	if err != nil {
		s.logger.Debug("instance info unavailable via api",
			zap.String("error", logging.SanitizeError(err)))
		return "", ""
	}

	var parsed tableResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", ""
	}

	for _, record := range parsed.Result {
		name, _ := record["name"].(string)
		value, _ := record["value"].(string)
		switch name {
		case "glide.buildname":
			dbType = value
		case "glide.war":
			version = value
		}
	}
	return dbType, version
}
