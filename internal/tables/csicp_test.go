package tables

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamstreaties/atlas/internal/communities"
	"github.com/williamstreaties/atlas/pkg/geo"
)

func TestProcessCSICP(t *testing.T) {
	cfg := testConfig(t)

	_, err := communities.WriteCommunities(cfg)
	require.NoError(t, err)

	nations := geojson.NewFeatureCollection()
	moose := geojson.NewFeature(orb.Point{-79.98, 45.07})
	moose.Properties["name"] = "Moose Point 79"
	nations.Append(moose)
	require.NoError(t, geo.WriteCollection(cwbFirstNationsPath(cfg), nations))

	rows := []string{
		"Province,Indigenous Group Name,Project Name,Project Type,Total Funding",
		`Ontario,Curve Lake First Nation,Cultural Centre,New Construction,"$1,200,000"`,
		`Ontario,Moose Deer Point First Nation,Community Hub,Renovation,"$800,000"`,
		`Ontario,Nowhere Nation,Band Hall,New Construction,"$100,000"`,
		`Quebec,Kahnawake,Youth Centre,New Construction,"$900,000"`,
	}
	input := writeText(t, cfg.Directories.Raw, "CSICP_Funding.csv",
		[]byte(strings.Join(rows, "\n")+"\n"))

	path, err := ProcessCSICP(cfg, input)
	require.NoError(t, err)
	assert.Equal(t, CSICPPath(cfg), path)

	fc, err := geo.ReadCollection(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	curveLake := fc.Features[0]
	assert.Equal(t, "Curve Lake First Nation", geo.StringProp(curveLake.Properties, "group_name"))
	assert.Equal(t, "Curve Lake First Nation", geo.StringProp(curveLake.Properties, "matched_community"))
	funding, ok := geo.FloatProp(curveLake.Properties, "funding")
	require.True(t, ok)
	assert.Equal(t, 1200000.0, funding)

	pt, ok := curveLake.Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -78.279, pt[0], 1e-9)
	assert.InDelta(t, 44.547, pt[1], 1e-9)

	hub := fc.Features[1]
	assert.Equal(t, "Moose Point 79", geo.StringProp(hub.Properties, "matched_community"))
}

func TestProcessCSICPNoMatches(t *testing.T) {
	cfg := testConfig(t)

	_, err := communities.WriteCommunities(cfg)
	require.NoError(t, err)

	rows := []string{
		"Province,Indigenous Group Name,Project Name,Project Type,Total Funding",
		`Ontario,Nowhere Nation,Band Hall,New Construction,"$100,000"`,
	}
	input := writeText(t, cfg.Directories.Raw, "CSICP_Funding.csv",
		[]byte(strings.Join(rows, "\n")+"\n"))

	_, err = ProcessCSICP(cfg, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no funded project matched")
}

func TestCleanCensusName(t *testing.T) {
	assert.Equal(t, "curve lake", cleanCensusName("Curve Lake First Nation 35"))
	assert.Equal(t, "scugog island", cleanCensusName("Scugog Island Indian Reserve No. 34"))
	assert.Equal(t, "oshawa", cleanCensusName("Oshawa"))
}

func TestMatchGroupPrefersTreatyCommunities(t *testing.T) {
	comms := geojson.NewFeatureCollection()
	c := geojson.NewFeature(orb.Point{-78.279, 44.547})
	c.Properties["name"] = "Curve Lake First Nation"
	comms.Append(c)

	nations := geojson.NewFeatureCollection()
	n := geojson.NewFeature(orb.Point{-78.0, 44.0})
	n.Properties["name"] = "Curve Lake First Nation 35"
	nations.Append(n)

	name, geom, ok := matchGroup("Curve Lake First Nation", comms, nations)
	require.True(t, ok)
	assert.Equal(t, "Curve Lake First Nation", name)
	assert.Equal(t, orb.Point{-78.279, 44.547}, geom)
}
