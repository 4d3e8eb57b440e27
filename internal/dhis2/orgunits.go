package dhis2

import (
	"context"
	"fmt"
	"net/url"

	"dhis2dupes/internal/users"
)

const orgUnitsPath = "/api/organisationUnits.json"

type orgUnitsResponse struct {
	OrganisationUnits []namedRef `json:"organisationUnits"`
}

// FetchOrganisationUnits builds the id to name index used to label users.
func (c *Client) FetchOrganisationUnits(ctx context.Context) (users.OrgUnitIndex, error) {
	params := url.Values{}
	params.Set("paging", "false")
	params.Set("fields", "id,name")

	var payload orgUnitsResponse
	if err := c.getJSON(ctx, orgUnitsPath, params, &payload); err != nil {
		return users.OrgUnitIndex{}, fmt.Errorf("fetch organisation units: %w", err)
	}
	refs := make([]users.OrgUnitRef, 0, len(payload.OrganisationUnits))
	for _, ou := range payload.OrganisationUnits {
		refs = append(refs, users.OrgUnitRef{ID: ou.ID, Name: ou.Name})
	}
	return users.NewOrgUnitIndex(refs), nil
}
