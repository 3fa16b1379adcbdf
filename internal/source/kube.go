package source

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/redactyl/livegrab/internal/types"
)

// Kubernetes reads Secret and ConfigMap data in one namespace, one chunk per
// data key.
type Kubernetes struct {
	client    kubernetes.Interface
	namespace string
	// Selector is an optional label selector applied to both lists.
	Selector   string
	ConfigMaps bool
	sensitive  *Sensitivity
}

// KubeClient builds a clientset from kubeconfig (empty for the default
// loading rules or in-cluster config) and returns it with the namespace of
// the selected context.
func KubeClient(kubeconfig, kubeContext string) (kubernetes.Interface, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{CurrentContext: kubeContext})
	restCfg, err := cc.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("load kubeconfig: %w", err)
	}
	ns, _, err := cc.Namespace()
	if err != nil || ns == "" {
		ns = metav1.NamespaceDefault
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, "", err
	}
	return cs, ns, nil
}

// NewKubernetes returns a reader over namespace using client.
func NewKubernetes(client kubernetes.Interface, namespace string, sensitive *Sensitivity) *Kubernetes {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Kubernetes{client: client, namespace: namespace, ConfigMaps: true, sensitive: sensitive}
}

func (k *Kubernetes) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceKubernetes, Location: k.namespace}
}

func (k *Kubernetes) Open(ctx context.Context) (Handle, error) {
	if k.client == nil {
		return nil, fmt.Errorf("no kubernetes client configured")
	}
	opts := metav1.ListOptions{LabelSelector: k.Selector}
	secrets, err := k.client.CoreV1().Secrets(k.namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list secrets in %s: %w", k.namespace, err)
	}
	var chunks []Chunk
	for i := range secrets.Items {
		chunks = append(chunks, k.secretChunks(&secrets.Items[i])...)
	}
	if k.ConfigMaps {
		cms, err := k.client.CoreV1().ConfigMaps(k.namespace).List(ctx, opts)
		switch {
		case apierrors.IsForbidden(err):
			log.Warnf("(source/kubernetes) not allowed to list configmaps in %s, skipping", k.namespace)
		case err != nil:
			return nil, fmt.Errorf("list configmaps in %s: %w", k.namespace, err)
		default:
			for i := range cms.Items {
				chunks = append(chunks, k.configMapChunks(&cms.Items[i])...)
			}
		}
	}
	return &chunkList{chunks: chunks}, nil
}

func (k *Kubernetes) secretChunks(s *corev1.Secret) []Chunk {
	desc := types.SourceDescriptor{
		Kind:     types.SourceKubernetes,
		Location: k.namespace + "/secret/" + s.Name,
		Metadata: map[string]string{"type": string(s.Type), "sensitive": "true"},
	}
	data := make(map[string][]byte, len(s.Data)+len(s.StringData))
	for key, v := range s.Data {
		data[key] = v
	}
	for key, v := range s.StringData {
		data[key] = []byte(v)
	}
	return keyedChunks(desc, data, nil)
}

func (k *Kubernetes) configMapChunks(cm *corev1.ConfigMap) []Chunk {
	desc := types.SourceDescriptor{
		Kind:     types.SourceKubernetes,
		Location: k.namespace + "/configmap/" + cm.Name,
	}
	data := make(map[string][]byte, len(cm.Data)+len(cm.BinaryData))
	for key, v := range cm.Data {
		data[key] = []byte(v)
	}
	for key, v := range cm.BinaryData {
		data[key] = v
	}
	return keyedChunks(desc, data, k.sensitive)
}

// keyedChunks emits data in key order with Section set to the key.
func keyedChunks(desc types.SourceDescriptor, data map[string][]byte, sensitive *Sensitivity) []Chunk {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Chunk, 0, len(keys))
	for _, key := range keys {
		out = append(out, Chunk{Data: data[key], Provenance: sensitive.annotate(desc, key)})
	}
	return out
}
