package provision

import "errors"

// ErrProvisioning is returned when the site cannot be listed, loaded or saved.
var ErrProvisioning = errors.New("provision: site provisioning failed")
