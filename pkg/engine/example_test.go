package engine_test

import (
	"errors"
	"fmt"

	"github.com/openfroyo/archetype/pkg/engine"
)

// Example_coordinates shows how archetype coordinates map onto a
// repository layout.
func Example_coordinates() {
	c := engine.ParseCoordinates("org.apache.maven.archetypes:maven-archetype-quickstart:1.4")

	fmt.Println(c.IsComplete())
	fmt.Println(c.Path())
	fmt.Println(c.JarName())

	partial := engine.ParseCoordinates("maven-archetype-webapp")
	fmt.Printf("%q %q\n", partial.GroupID, partial.ArtifactID)

	// Output:
	// true
	// org/apache/maven/archetypes/maven-archetype-quickstart/1.4
	// maven-archetype-quickstart-1.4.jar
	// "" "maven-archetype-webapp"
}

// Example_configuration shows that a configuration remembers the order
// properties were resolved in.
func Example_configuration() {
	conf := engine.NewConfiguration()
	conf.Set(engine.PropGroupID, "com.example")
	conf.Set(engine.PropArtifactID, "demo")
	conf.Set(engine.PropVersion, "1.0-SNAPSHOT")
	conf.Set(engine.PropGroupID, "com.acme")

	fmt.Println(conf.Keys)
	fmt.Println(conf.Value(engine.PropGroupID))
	fmt.Println(conf.SortedKeys())

	// Output:
	// [groupId artifactId version]
	// com.acme
	// [artifactId groupId version]
}

// Example_errors shows how callers classify failures.
func Example_errors() {
	err := fmt.Errorf("generate: %w", engine.NewProjectDirectoryExistsError("/work/demo"))

	fmt.Println(errors.Is(err, engine.ErrProjectDirectoryExists))
	fmt.Println(engine.IsExistingOutput(err))
	fmt.Println(engine.KindOf(err))

	// Output:
	// true
	// true
	// project-directory-exists
}
