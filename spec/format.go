package spec

import "strings"

// Format is the domain data format a file path refers to.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatRaster  Format = "raster"
	FormatVector  Format = "vector"
	FormatTable   Format = "table"
	FormatNetCDF  Format = "netcdf"
	FormatYAML    Format = "yaml"
)

var formatsByExt = map[string]Format{
	"tif":     FormatRaster,
	"tiff":    FormatRaster,
	"geotiff": FormatRaster,
	"asc":     FormatRaster,
	"shp":     FormatVector,
	"geojson": FormatVector,
	"gpkg":    FormatVector,
	"csv":     FormatTable,
	"nc":      FormatNetCDF,
	"nc4":     FormatNetCDF,
	"yaml":    FormatYAML,
	"yml":     FormatYAML,
}

// FormatForExt maps a file extension, with or without the dot, to a Format.
func FormatForExt(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if format, ok := formatsByExt[ext]; ok {
		return format
	}
	return FormatUnknown
}
