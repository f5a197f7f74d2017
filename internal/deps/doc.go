// Package deps resolves the external binaries the extraction job shells out to.
package deps
