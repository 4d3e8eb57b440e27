package dhis2

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"dhis2dupes/internal/logging"
	"dhis2dupes/internal/users"
)

const usersPath = "/api/users.json"

// UserFields is the field filter requested from /api/users. Roles are asked
// for at both levels because older servers nest them under userCredentials.
const UserFields = "id,username,name,email,organisationUnits[id,name],userRoles[name],userCredentials[username,userRoles[name]]"

// UserQuery narrows a roster fetch.
type UserQuery struct {
	// OrgUnit restricts the roster server-side to users assigned to the unit.
	OrgUnit string
}

type namedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userPayload struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Name              *string    `json:"name"`
	Email             string     `json:"email"`
	OrganisationUnits []namedRef `json:"organisationUnits"`
	UserRoles         []namedRef `json:"userRoles"`
	UserCredentials   *struct {
		Username  string     `json:"username"`
		UserRoles []namedRef `json:"userRoles"`
	} `json:"userCredentials"`
}

type pager struct {
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type usersResponse struct {
	Pager *pager        `json:"pager"`
	Users []userPayload `json:"users"`
}

// FetchUsers returns the user roster in server order. On error no partial
// roster is returned.
func (c *Client) FetchUsers(ctx context.Context, query UserQuery) ([]users.Record, error) {
	params := url.Values{}
	params.Set("fields", UserFields)
	if unit := strings.TrimSpace(query.OrgUnit); unit != "" {
		params.Set("filter", "organisationUnits.id:eq:"+unit)
	}

	if c.pageSize <= 0 {
		params.Set("paging", "false")
		var payload usersResponse
		if err := c.getJSON(ctx, usersPath, params, &payload); err != nil {
			return nil, fmt.Errorf("fetch users: %w", err)
		}
		return toRecords(payload.Users), nil
	}

	params.Set("pageSize", strconv.Itoa(c.pageSize))
	var records []users.Record
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		var payload usersResponse
		if err := c.getJSON(ctx, usersPath, params, &payload); err != nil {
			return nil, fmt.Errorf("fetch users page %d: %w", page, err)
		}
		records = append(records, toRecords(payload.Users)...)
		if payload.Pager == nil || page >= payload.Pager.PageCount || len(payload.Users) == 0 {
			break
		}
	}
	c.logger.Debug("user roster fetched",
		logging.Int("count", len(records)),
		logging.String(logging.FieldOrgUnit, query.OrgUnit),
	)
	if records == nil {
		records = []users.Record{}
	}
	return records, nil
}

func toRecords(payload []userPayload) []users.Record {
	records := make([]users.Record, 0, len(payload))
	for _, p := range payload {
		records = append(records, toRecord(p))
	}
	return records
}

func toRecord(p userPayload) users.Record {
	record := users.Record{
		ID:       p.ID,
		Username: p.Username,
		Name:     p.Name,
		Email:    p.Email,
	}
	roles := p.UserRoles
	if p.UserCredentials != nil {
		if record.Username == "" {
			record.Username = p.UserCredentials.Username
		}
		if len(roles) == 0 {
			roles = p.UserCredentials.UserRoles
		}
	}
	for _, ou := range p.OrganisationUnits {
		record.OrganisationUnits = append(record.OrganisationUnits, users.OrgUnitRef{ID: ou.ID, Name: ou.Name})
	}
	for _, role := range roles {
		if role.Name != "" {
			record.Roles = append(record.Roles, role.Name)
		}
	}
	return record
}
