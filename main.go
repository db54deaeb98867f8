// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/Deltares/Ribasim-sub001/core"
)

func main() {

	verbose := true

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			for i := 8; i > 3; i-- {
				chk.CallerInfo(i)
			}

			// print log file
			if verbose && core.RunLogPath != "" {
				core.DumpOnError(core.RunLogPath)
			}

			io.PfRed("ERROR: %v\n", err)
		}
	}()

	// message
	io.PfWhite("\nRibasim-sub001 -- hydrological network simulator\n\n")
	io.Pf("Copyright 2016 The Gofem Authors. All rights reserved.\n")
	io.Pf("Use of this source code is governed by a BSD-style\n")
	io.Pf("license that can be found in the LICENSE file.\n\n")

	// configuration filenamepath
	flag.Parse()
	var cfgPath string
	if len(flag.Args()) > 0 {
		cfgPath = flag.Arg(0)
	} else {
		chk.Panic("Please, provide a configuration filename. Ex.: network.toml")
	}

	// check extension
	if io.FnExt(cfgPath) == "" {
		cfgPath += ".toml"
	}

	// other options
	if len(flag.Args()) > 1 {
		verbose = io.Atob(flag.Arg(1))
	}

	// run simulation
	if err := core.Run(cfgPath, nil, nil, nil); err != nil {
		chk.Panic("Run failed: %v\n", err)
	}
}
