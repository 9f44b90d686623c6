package mcpserver

import (
	"fmt"

	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/storage"
)

const layoutURI = "jsonvault://layout"

const layoutTemplate = `# jsonvault storage layout

Documents are JSON values stored as flat files under one of two roots.

| Tier | Root | Notes |
|------|------|-------|
| synced | %s | mirrored to the cloud by the operating system; may be unavailable |
| private | %s | local to this device, always available |

## Names

1. A name is a single file name such as ` + "`servers.json`" + `. There are no folders.
2. Names must not be empty, ` + "`.`" + ` or ` + "`..`" + `, and must not contain ` + "`/`" + `, ` + "`\\`" + ` or NUL.
3. The same name in different tiers refers to two unrelated documents.

## Contents

- ` + "`set_document`" + ` requires valid JSON and stores it indented with four spaces.
- ` + "`get_document`" + ` fails if the stored file is not valid JSON.
- Writing replaces the whole document. There is no merge and no history.
- Removing a missing document is an error.

## Listing

` + "`list_documents`" + ` returns file names in sorted order, optionally filtered by an
extension such as ` + "`.json`" + `. A tier that was never written lists as empty.
`

// Layout renders the storage layout description for store.
func Layout(store *storage.Store) string {
	return fmt.Sprintf(layoutTemplate, rootOf(store, models.Synced), rootOf(store, models.Private))
}

func rootOf(store *storage.Store, tier models.Tier) string {
	p, err := store.Provider(tier)
	if err != nil {
		return "(unavailable)"
	}
	if p.Root() == "" {
		return "(in memory)"
	}
	return "`" + p.Root() + "`"
}
