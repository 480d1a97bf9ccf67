package internal

import (
	"fmt"
	"io"
)

const Version = "0.3.0"

// LongDescription is the root command help text.
const LongDescription = `vecload - embed a Q&A dataset once and load Matryoshka-truncated vectors
into several vector collections of different dimensions.

Connection settings come from the profile env file (resources/.<profile>.env),
optionally layered over ~/.vecload/config/vecload.yaml.

Typical workflow:
    vecload config init      # write a config template
    vecload init             # create the target collections
    vecload smoke            # check the embedding provider ranks sensibly
    vecload ingest           # embed the dataset and upsert all collections
    vecload stats            # show point counts per collection`

// PrintEnvExample writes a sample profile env file for profile.
func PrintEnvExample(w io.Writer, path string) {
	fmt.Fprintf(w, `Create the profile env file at %s:

# Vector database
QDRANT_URL=http://127.0.0.1:6333
QDRANT_API_KEY=

# Embedding provider (jina | openai | volcengine)
EMBEDDING_PROVIDER=jina
JINA_API_KEY=your-jina-api-key

# Optional: Hugging Face token for gated datasets
HF_TOKEN=

# Optional: use a local store instead of Qdrant
# VECLOAD_STORE_BACKEND=sqlite
# VECLOAD_STORE_PATH=~/.vecload/data/vectors.db
`, path)
}
