// Command xeno inspects the interposer's environment and manages the shader cache.
package main

import "github.com/exynostools/xeno/cmd/xeno/cmd"

func main() {
	cmd.Execute()
}
