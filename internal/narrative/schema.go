package narrative

import "github.com/santhosh-tekuri/jsonschema/v5"

// storySchemaJSON constrains the text provider's response to the exact
// shape of a narrative result. The same schema is sent as the structured
// output format and applied again locally before decoding.
const storySchemaJSON = `{
  "type": "object",
  "required": ["title", "cover_prompt", "pages"],
  "additionalProperties": false,
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "cover_prompt": {"type": "string", "minLength": 1},
    "pages": {
      "type": "array",
      "minItems": 24,
      "maxItems": 24,
      "items": {
        "type": "object",
        "required": ["page_number", "page_type", "text", "text_position", "image_prompt"],
        "additionalProperties": false,
        "properties": {
          "page_number": {"type": "integer", "minimum": 1, "maximum": 24},
          "page_type": {"enum": ["title", "story", "back_cover"]},
          "text": {"type": "string"},
          "text_position": {"enum": ["top", "middle", "bottom"]},
          "image_prompt": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var storySchema = jsonschema.MustCompileString("story.json", storySchemaJSON)
