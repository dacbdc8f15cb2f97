package domain

import "github.com/santhosh-tekuri/jsonschema/v5"

// observationSchemaJSON is the structural contract for Open-Meteo current
// weather responses. Metric parameters are intentionally open-ended
// (additionalProperties) so new configured parameters validate without a
// schema change; only the envelope is pinned.
const observationSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/couchcryptid/weather-data-etl/observation.schema.json",
  "type": "object",
  "required": ["latitude", "longitude", "current"],
  "properties": {
    "latitude": {"type": "number"},
    "longitude": {"type": "number"},
    "timezone": {"type": "string"},
    "elevation": {"type": "number"},
    "current_units": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "current": {
      "type": "object",
      "required": ["time"],
      "properties": {
        "time": {"type": "string", "minLength": 1},
        "interval": {"type": "integer"}
      },
      "additionalProperties": {"type": ["number", "null"]}
    }
  }
}`

var observationSchema = jsonschema.MustCompileString("observation.schema.json", observationSchemaJSON)
